package tron

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/GPTx-global/sun-network-oracle/oracle/address"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

const (
	selectorWithdrawSigns = "getWithdrawSigns(uint256)"
	selectorWithdrawTRX   = "withdrawTRX(address,uint256,uint256,bytes[])"
	selectorWithdrawTRC10 = "withdrawTRC10(address,uint256,uint256,uint256,bytes[])"
	selectorWithdrawTRC20 = "withdrawTRC20(address,address,uint256,uint256,bytes[])"
)

var (
	uint256Type    = mustType("uint256")
	addressType    = mustType("address")
	bytesArrayType = mustType("bytes[]")

	withdrawSignsArgs = abi.Arguments{{Type: uint256Type}}
	signsResultArgs   = abi.Arguments{{Type: bytesArrayType}}

	withdrawTRXArgs   = abi.Arguments{{Type: addressType}, {Type: uint256Type}, {Type: uint256Type}, {Type: bytesArrayType}}
	withdrawTRC10Args = abi.Arguments{{Type: addressType}, {Type: uint256Type}, {Type: uint256Type}, {Type: uint256Type}, {Type: bytesArrayType}}
	withdrawTRC20Args = abi.Arguments{{Type: addressType}, {Type: addressType}, {Type: uint256Type}, {Type: uint256Type}, {Type: bytesArrayType}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}

	return typ
}

func packWithdrawSigns(nonce string) ([]byte, error) {
	n, err := sign.ParseNonce(nonce)
	if err != nil {
		return nil, err
	}

	return withdrawSignsArgs.Pack(n.BigInt())
}

func unpackSigns(data []byte) ([]string, error) {
	out, err := signsResultArgs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signs: %w", err)
	}

	raw, ok := out[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected signs type %T", out[0])
	}

	signs := make([]string, 0, len(raw))
	for _, s := range raw {
		if len(s) == 0 {
			continue
		}
		signs = append(signs, hex.EncodeToString(s))
	}

	return signs, nil
}

// packWithdraw returns the selector and ABI parameters of the main-chain
// gateway call that releases the withdrawal.
func packWithdraw(w types.Withdrawal, signs []string) (string, []byte, error) {
	to, err := evmAddress(w.From)
	if err != nil {
		return "", nil, err
	}

	value, err := sign.ParseUint256(w.Value)
	if err != nil {
		return "", nil, err
	}

	nonce, err := sign.ParseNonce(w.Nonce)
	if err != nil {
		return "", nil, err
	}

	sigs, err := decodeSigns(signs)
	if err != nil {
		return "", nil, err
	}

	var (
		selector string
		params   []byte
	)

	switch w.Type {
	case types.EventTypeWithdrawTRX:
		selector = selectorWithdrawTRX
		params, err = withdrawTRXArgs.Pack(to, value.BigInt(), nonce.BigInt(), sigs)
	case types.EventTypeWithdrawTRC10:
		var tokenID *big.Int
		tokenID, err = parseBig(w.Token)
		if err != nil {
			return "", nil, err
		}
		selector = selectorWithdrawTRC10
		params, err = withdrawTRC10Args.Pack(to, tokenID, value.BigInt(), nonce.BigInt(), sigs)
	case types.EventTypeWithdrawTRC20:
		var token common.Address
		token, err = evmAddress(w.Token)
		if err != nil {
			return "", nil, err
		}
		selector = selectorWithdrawTRC20
		params, err = withdrawTRC20Args.Pack(to, token, value.BigInt(), nonce.BigInt(), sigs)
	default:
		return "", nil, types.ErrUnknownEventType.Wrapf("%d", w.Type)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to pack %s: %w", selector, err)
	}

	return selector, params, nil
}

func parseBig(s string) (*big.Int, error) {
	v, err := sign.ParseUint256(s)
	if err != nil {
		return nil, err
	}

	return v.BigInt(), nil
}

func evmAddress(addr string) (common.Address, error) {
	bz, err := address.Decode(addr)
	if err != nil {
		return common.Address{}, types.ErrInvalidAddress.Wrap(err.Error())
	}

	return common.BytesToAddress(address.EVM(bz)), nil
}

func decodeSigns(signs []string) ([][]byte, error) {
	out := make([][]byte, 0, len(signs))
	for _, s := range signs {
		bz, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x"))
		if err != nil {
			return nil, fmt.Errorf("malformed oracle sign %q: %w", s, err)
		}
		out = append(out, bz)
	}

	return out, nil
}
