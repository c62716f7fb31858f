package sign

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GPTx-global/sun-network-oracle/oracle/address"
)

// Signer holds the oracle's secp256k1 key
type Signer struct {
	key     *ecdsa.PrivateKey
	address []byte
}

// NewSigner loads a hex encoded private key
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	return NewSignerFromKey(key), nil
}

func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	evm := crypto.PubkeyToAddress(key.PublicKey)

	return &Signer{
		key:     key,
		address: append([]byte{address.Prefix}, evm.Bytes()...),
	}
}

// Address returns the base58check address of the key
func (s *Signer) Address() string {
	addr, _ := address.Encode(s.address)
	return addr
}

// HexAddress returns the 21-byte address in hex
func (s *Signer) HexAddress() string {
	return hex.EncodeToString(s.address)
}

// Sign signs a 32-byte digest. The recovery byte is shifted to 27/28 so the
// signature verifies with the contracts' ecrecover.
func (s *Signer) Sign(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}

// SignHex is Sign with a hex encoded result
func (s *Signer) SignHex(digest []byte) (string, error) {
	sig, err := s.Sign(digest)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}

// Recover returns the 21-byte address that produced sig over digest
func Recover(digest, sig []byte) ([]byte, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	normalized := append([]byte(nil), sig...)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}

	return append([]byte{address.Prefix}, crypto.PubkeyToAddress(*pub).Bytes()...), nil
}
