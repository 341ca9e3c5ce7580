package layout

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortiblox/x1-lockup/internal/types"
)

// record exercises every helper in the order a token account uses them.
type record struct {
	key      types.Pubkey
	delegate types.Pubkey
	amount   uint64
	state    uint8
	native   bool
	reserve  *uint64
}

const recordSize = 32 + (4 + 32) + 8 + 1 + 1 + (4 + 8)

func (r *record) marshal() []byte {
	b := make([]byte, recordSize)

	var offset int
	PutKey32(b[offset:], r.key, &offset)
	PutOptionalKey32(b[offset:], r.delegate, &offset, 4)
	PutUint64(b[offset:], r.amount, &offset)
	PutUint8(b[offset:], r.state, &offset)
	PutBool(b[offset:], r.native, &offset)
	PutOptionalUint64(b[offset:], r.reserve, &offset, 4)

	return b
}

func (r *record) unmarshal(b []byte) int {
	var offset int
	GetKey32(b[offset:], &r.key, &offset)
	GetOptionalKey32(b[offset:], &r.delegate, &offset, 4)
	GetUint64(b[offset:], &r.amount, &offset)
	GetUint8(b[offset:], &r.state, &offset)
	GetBool(b[offset:], &r.native, &offset)
	GetOptionalUint64(b[offset:], &r.reserve, &offset, 4)
	return offset
}

func TestOffsets(t *testing.T) {
	reserve := uint64(2_039_280)
	r := record{
		key:      types.Pubkey{1, 2, 3},
		delegate: types.Pubkey{9},
		amount:   0x0102030405060708,
		state:    2,
		native:   true,
		reserve:  &reserve,
	}
	b := r.marshal()

	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, []byte{1, 0, 0, 0}, b[32:36])
	assert.Equal(t, byte(9), b[36])
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(b[68:76]))
	assert.Equal(t, byte(8), b[68])
	assert.Equal(t, byte(2), b[76])
	assert.Equal(t, byte(1), b[77])
	assert.Equal(t, []byte{1, 0, 0, 0}, b[78:82])
	assert.Equal(t, reserve, binary.LittleEndian.Uint64(b[82:90]))

	var decoded record
	assert.Equal(t, recordSize, decoded.unmarshal(b))
	assert.Equal(t, r.key, decoded.key)
	assert.Equal(t, r.delegate, decoded.delegate)
	assert.Equal(t, r.amount, decoded.amount)
	assert.Equal(t, r.state, decoded.state)
	assert.True(t, decoded.native)
	require.NotNil(t, decoded.reserve)
	assert.Equal(t, reserve, *decoded.reserve)
}

func TestOptionalNone(t *testing.T) {
	r := record{key: types.Pubkey{7}, amount: 5}
	b := r.marshal()

	// None leaves the tag and the payload zeroed, but still occupies them.
	assert.Equal(t, make([]byte, 36), b[32:68])
	assert.Equal(t, make([]byte, 12), b[78:90])

	var decoded record
	assert.Equal(t, recordSize, decoded.unmarshal(b))
	assert.True(t, decoded.delegate.IsZero())
	assert.Nil(t, decoded.reserve)
	assert.False(t, decoded.native)
	assert.Equal(t, uint64(5), decoded.amount)
}
