// Package layout provides offset-tracking helpers for fixed-size,
// little-endian account layouts.
package layout

import (
	"encoding/binary"

	"github.com/fortiblox/x1-lockup/internal/types"
)

func PutKey32(dst []byte, src types.Pubkey, offset *int) {
	copy(dst, src[:])
	*offset += types.PubkeySize
}

// PutOptionalKey32 writes a COption<Pubkey>. A zero key is written as None.
func PutOptionalKey32(dst []byte, src types.Pubkey, offset *int, optionSize int) {
	if !src.IsZero() {
		dst[0] = 1
		copy(dst[optionSize:], src[:])
	}
	*offset += optionSize + types.PubkeySize
}

func PutUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst, v)
	*offset += 8
}

func PutUint8(dst []byte, v uint8, offset *int) {
	dst[0] = v
	*offset++
}

func PutBool(dst []byte, v bool, offset *int) {
	if v {
		dst[0] = 1
	}
	*offset++
}

func PutOptionalUint64(dst []byte, v *uint64, offset *int, optionSize int) {
	if v != nil {
		dst[0] = 1
		binary.LittleEndian.PutUint64(dst[optionSize:], *v)
	}
	*offset += optionSize + 8
}

func GetKey32(src []byte, dst *types.Pubkey, offset *int) {
	copy(dst[:], src)
	*offset += types.PubkeySize
}

func GetOptionalKey32(src []byte, dst *types.Pubkey, offset *int, optionSize int) {
	if src[0] == 1 {
		copy(dst[:], src[optionSize:])
	}
	*offset += optionSize + types.PubkeySize
}

func GetUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src)
	*offset += 8
}

func GetUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[0]
	*offset++
}

func GetBool(src []byte, dst *bool, offset *int) {
	*dst = src[0] != 0
	*offset++
}

func GetOptionalUint64(src []byte, dst **uint64, offset *int, optionSize int) {
	if src[0] == 1 {
		val := binary.LittleEndian.Uint64(src[optionSize:])
		*dst = &val
	}
	*offset += optionSize + 8
}
