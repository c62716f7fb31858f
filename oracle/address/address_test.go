package address

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// zero address of the chain, 0x41 followed by twenty zero bytes
const zeroAddress = "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb"

func TestDecodeZeroAddress(t *testing.T) {
	bz, err := Decode(zeroAddress)
	require.NoError(t, err)
	require.Len(t, bz, Length)
	require.Equal(t, Prefix, bz[0])
	require.True(t, bytes.Equal(make([]byte, 20), bz[1:]))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bz := append([]byte{Prefix}, bytes.Repeat([]byte{0xab}, 20)...)

	addr, err := Encode(bz)
	require.NoError(t, err)
	require.Equal(t, byte('T'), addr[0])

	decoded, err := Decode(addr)
	require.NoError(t, err)
	require.Equal(t, bz, decoded)
}

func TestDecodeInvalid(t *testing.T) {
	testCases := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"bad checksum", "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwc"},
		{"not base58", "0OIl"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.addr)
			require.Error(t, err)
		})
	}
}

func TestEncodeRejectsWrongPrefix(t *testing.T) {
	bz := append([]byte{0x00}, make([]byte, 20)...)
	_, err := Encode(bz)
	require.Error(t, err)

	_, err = Encode([]byte{Prefix})
	require.Error(t, err)
}

func TestHexConversion(t *testing.T) {
	h, err := ToHex(zeroAddress)
	require.NoError(t, err)
	require.Equal(t, "410000000000000000000000000000000000000000", h)

	addr, err := FromHex("0x" + h)
	require.NoError(t, err)
	require.Equal(t, zeroAddress, addr)
}

func TestEVM(t *testing.T) {
	bz, err := Decode(zeroAddress)
	require.NoError(t, err)
	require.Len(t, EVM(bz), 20)
}
