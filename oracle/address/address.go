// Package address converts chain addresses between their binary,
// base58check and hex forms.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

const (
	// Prefix is the version byte every main/side chain address starts with
	Prefix byte = 0x41

	// Length is the binary address length including the prefix byte
	Length = 21
)

// Decode parses a base58check address into its 21-byte binary form
func Decode(addr string) ([]byte, error) {
	payload, version, err := base58.CheckDecode(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", addr, err)
	}

	if version != Prefix {
		return nil, fmt.Errorf("unexpected address prefix 0x%x", version)
	}

	if len(payload) != Length-1 {
		return nil, fmt.Errorf("unexpected address length %d", len(payload)+1)
	}

	return append([]byte{version}, payload...), nil
}

// Encode returns the base58check form of a 21-byte binary address
func Encode(bz []byte) (string, error) {
	if err := Validate(bz); err != nil {
		return "", err
	}

	return base58.CheckEncode(bz[1:], bz[0]), nil
}

// Validate checks the length and prefix of a binary address
func Validate(bz []byte) error {
	if len(bz) != Length {
		return fmt.Errorf("unexpected address length %d", len(bz))
	}

	if bz[0] != Prefix {
		return fmt.Errorf("unexpected address prefix 0x%x", bz[0])
	}

	return nil
}

// ToHex converts a base58check address into the hex form used by the node HTTP API
func ToHex(addr string) (string, error) {
	bz, err := Decode(addr)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(bz), nil
}

// FromHex converts a hex address (with or without 0x) into base58check
func FromHex(h string) (string, error) {
	bz, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return "", fmt.Errorf("failed to decode hex address: %w", err)
	}

	return Encode(bz)
}

// EVM strips the prefix byte, leaving the 20 bytes a contract sees
func EVM(bz []byte) []byte {
	if len(bz) == Length {
		return bz[1:]
	}

	return bz
}
