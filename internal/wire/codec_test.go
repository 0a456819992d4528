package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []MessageHeaders{
		{Size: 0, ComprAlg: CompressionNone},
		{Size: 5, ComprAlg: CompressionGZIP},
		{Size: math.MaxUint64, ComprAlg: CompressionZSTD},
	}
	for _, h := range cases {
		buf := make([]byte, HeaderSize)
		Marshal(h, buf)
		got := Unmarshal(buf)
		assert.Equal(t, h, got)
	}
}

func TestMarshalLittleEndian(t *testing.T) {
	buf := make([]byte, HeaderSize)
	Marshal(MessageHeaders{Size: 0x0102030405060708, ComprAlg: CompressionLZ4}, buf)
	require.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, byte(CompressionLZ4)}, buf)
}

func TestZeroPayloadHeaderOnly(t *testing.T) {
	buf := make([]byte, HeaderSize)
	Marshal(MessageHeaders{Size: 0, ComprAlg: CompressionNone}, buf)
	h := Unmarshal(buf)
	assert.Equal(t, uint64(0), h.Size)
}
