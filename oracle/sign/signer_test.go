package sign

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestSignerRecoversAddress(t *testing.T) {
	signer, err := NewSigner("0x" + testKey)
	require.NoError(t, err)
	require.Equal(t, byte('T'), signer.Address()[0])
	require.Len(t, signer.HexAddress(), 42)

	digest := crypto.Keccak256([]byte("withdraw"))
	sigHex, err := signer.SignHex(digest)
	require.NoError(t, err)

	sig, err := hex.DecodeString(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	require.Contains(t, []byte{27, 28}, sig[crypto.RecoveryIDOffset])

	addr, err := Recover(digest, sig)
	require.NoError(t, err)
	require.Equal(t, signer.HexAddress(), hex.EncodeToString(addr))
}

func TestSignerIsDeterministic(t *testing.T) {
	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("nonce-1"))
	a, err := signer.SignHex(digest)
	require.NoError(t, err)
	b, err := signer.SignHex(digest)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSignerRejectsBadInput(t *testing.T) {
	_, err := NewSigner("zz")
	require.Error(t, err)

	signer, err := NewSigner(testKey)
	require.NoError(t, err)

	_, err = signer.Sign([]byte("short"))
	require.Error(t, err)

	_, err = Recover(make([]byte, 32), []byte{1, 2})
	require.Error(t, err)
}
