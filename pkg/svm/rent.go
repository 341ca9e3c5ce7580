package svm

// Rent parameters.
const (
	// AccountStorageOverhead is charged for every account regardless of size.
	AccountStorageOverhead = uint64(128)

	// LamportsPerByteYear is the yearly rent per stored byte.
	LamportsPerByteYear = uint64(3480)

	// ExemptionThresholdYears is how many years of rent make an account exempt.
	ExemptionThresholdYears = uint64(2)
)

// RentMinimum returns the rent-exempt minimum balance for an account holding
// dataLen bytes.
func RentMinimum(dataLen uint64) uint64 {
	return (AccountStorageOverhead + dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}
