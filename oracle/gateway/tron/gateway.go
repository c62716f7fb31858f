package tron

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/GPTx-global/sun-network-oracle/oracle/address"
	"github.com/GPTx-global/sun-network-oracle/oracle/gateway"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

const DefaultFeeLimit int64 = 1_000_000_000

var (
	_ gateway.SideChain   = (*SideChainGateway)(nil)
	_ gateway.MainChain   = (*MainChainGateway)(nil)
	_ gateway.Broadcaster = (*MainChainGateway)(nil)
)

// SideChainGateway reads oracle signatures from the side-chain gateway
// contract and produces this oracle's own signature locally.
type SideChainGateway struct {
	client   *Client
	signer   *sign.Signer
	contract string
	owner    string
}

func NewSideChainGateway(client *Client, signer *sign.Signer, contract string) (*SideChainGateway, error) {
	contractHex, err := address.ToHex(contract)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("side chain gateway: %s", err)
	}

	return &SideChainGateway{
		client:   client,
		signer:   signer,
		contract: contractHex,
		owner:    signer.HexAddress(),
	}, nil
}

func (g *SideChainGateway) WithdrawOracleSigns(ctx context.Context, nonce string) ([]string, error) {
	params, err := packWithdrawSigns(nonce)
	if err != nil {
		return nil, err
	}

	out, err := g.client.TriggerConstant(ctx, g.owner, g.contract, selectorWithdrawSigns, params)
	if err != nil {
		return nil, err
	}

	return unpackSigns(out)
}

// WithdrawSign signs the withdraw data hash. Signing is deterministic so the
// result equals the signature this oracle posted to the side chain.
func (g *SideChainGateway) WithdrawSign(ctx context.Context, w types.Withdrawal) (string, error) {
	hash, err := g.WithdrawDataHash(ctx, w)
	if err != nil {
		return "", err
	}

	return g.signer.SignHex(hash)
}

func (g *SideChainGateway) WithdrawDataHash(_ context.Context, w types.Withdrawal) ([]byte, error) {
	return sign.WithdrawDataHash(w)
}

func (g *SideChainGateway) Ping(ctx context.Context) error {
	_, err := g.client.NowBlock(ctx)
	return err
}

// MainChainGateway builds, signs and broadcasts withdrawal transactions on
// the main-chain gateway contract.
type MainChainGateway struct {
	client   *Client
	signer   *sign.Signer
	contract string
	feeLimit int64
}

func NewMainChainGateway(client *Client, signer *sign.Signer, contract string, feeLimit int64) (*MainChainGateway, error) {
	contractHex, err := address.ToHex(contract)
	if err != nil {
		return nil, types.ErrInvalidAddress.Wrapf("main chain gateway: %s", err)
	}

	if feeLimit <= 0 {
		feeLimit = DefaultFeeLimit
	}

	return &MainChainGateway{
		client:   client,
		signer:   signer,
		contract: contractHex,
		feeLimit: feeLimit,
	}, nil
}

func (g *MainChainGateway) BuildWithdrawTx(ctx context.Context, w types.Withdrawal, signs []string) (types.Transaction, error) {
	selector, params, err := packWithdraw(w, signs)
	if err != nil {
		return types.Transaction{}, err
	}

	unsigned, err := g.client.TriggerSmart(ctx, g.signer.HexAddress(), g.contract, selector, params, g.feeLimit)
	if err != nil {
		return types.Transaction{}, err
	}

	return signTransaction(g.signer, unsigned)
}

func (g *MainChainGateway) BroadcastTx(ctx context.Context, tx types.Transaction) error {
	return g.client.Broadcast(ctx, tx.Raw)
}

func (g *MainChainGateway) Ping(ctx context.Context) error {
	_, err := g.client.NowBlock(ctx)
	return err
}

// signTransaction signs the txID of a node built transaction and attaches
// the signature.
func signTransaction(signer *sign.Signer, unsigned []byte) (types.Transaction, error) {
	txID := gjson.GetBytes(unsigned, "txID").String()

	digest, err := hex.DecodeString(txID)
	if err != nil || len(digest) != 32 {
		return types.Transaction{}, fmt.Errorf("malformed txID %q", txID)
	}

	sig, err := signer.SignHex(digest)
	if err != nil {
		return types.Transaction{}, err
	}

	signed, err := sjson.SetBytes(unsigned, "signature", []string{sig})
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to attach signature: %w", err)
	}

	return types.Transaction{ID: txID, Raw: signed}, nil
}
