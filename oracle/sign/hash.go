package sign

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GPTx-global/sun-network-oracle/oracle/address"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// ParseUint256 parses a decimal string into a non-negative 256-bit integer
func ParseUint256(s string) (sdkmath.Int, error) {
	return parseUint256(s, types.ErrInvalidAmount)
}

// ParseNonce parses a withdrawal nonce, which the contracts take as uint256
func ParseNonce(s string) (sdkmath.Int, error) {
	return parseUint256(s, types.ErrInvalidNonce)
}

func parseUint256(s string, class *errorsmod.Error) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, class.Wrapf("%q is not a 256-bit integer", s)
	}

	if v.IsNegative() {
		return sdkmath.Int{}, class.Wrapf("%q is negative", s)
	}

	return v, nil
}

// WithdrawDataHash returns keccak256 over the tightly packed withdrawal:
// from, [token], value, nonce. The layout matches the gateway contracts'
// abi.encodePacked so every oracle signs the same digest.
func WithdrawDataHash(w types.Withdrawal) ([]byte, error) {
	from, err := address.Decode(w.From)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrap(err.Error())
	}

	value, err := ParseUint256(w.Value)
	if err != nil {
		return nil, err
	}

	nonce, err := ParseNonce(w.Nonce)
	if err != nil {
		return nil, err
	}

	packed := make([]byte, 0, 20+32+32+32)
	packed = append(packed, address.EVM(from)...)

	switch w.Type {
	case types.EventTypeWithdrawTRX:
	case types.EventTypeWithdrawTRC10:
		tokenID, err := ParseUint256(w.Token)
		if err != nil {
			return nil, err
		}
		packed = append(packed, word(tokenID)...)
	case types.EventTypeWithdrawTRC20:
		token, err := address.Decode(w.Token)
		if err != nil {
			return nil, types.ErrInvalidAddress.Wrapf("token contract: %s", err)
		}
		packed = append(packed, address.EVM(token)...)
	default:
		return nil, w.Type.Validate()
	}

	packed = append(packed, word(value)...)
	packed = append(packed, word(nonce)...)

	return crypto.Keccak256(packed), nil
}

func word(v sdkmath.Int) []byte {
	return common.LeftPadBytes(v.BigInt().Bytes(), 32)
}
