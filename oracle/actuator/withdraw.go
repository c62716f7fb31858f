package actuator

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// withdrawActuator is the multi-sign withdrawal flow shared by every asset.
// The event is never mutated after construction; the assembled extension is
// written once under mu and read lock-free.
type withdrawActuator struct {
	eventType types.EventType
	event     *types.WithdrawEvent
	deps      Dependencies
	logger    log.Logger

	mu  sync.Mutex
	ext atomic.Pointer[types.TransactionExtension]
}

func newWithdrawActuator(t types.EventType, ev *types.WithdrawEvent, deps Dependencies) (*withdrawActuator, error) {
	if err := ev.ValidateFor(t); err != nil {
		return nil, err
	}

	deps, err := deps.normalize()
	if err != nil {
		return nil, err
	}

	return &withdrawActuator{
		eventType: t,
		event:     ev,
		deps:      deps,
		logger:    deps.Logger.With("module", "actuator", "type", t.String()),
	}, nil
}

func (a *withdrawActuator) Type() types.EventType {
	return a.eventType
}

func (a *withdrawActuator) TaskTarget() types.TaskTarget {
	return types.TaskTargetMainChain
}

func (a *withdrawActuator) CreateTransactionExtension(ctx context.Context) error {
	if a.ext.Load() != nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ext.Load() != nil {
		return nil
	}

	ext, err := a.assemble(ctx)
	if err != nil {
		a.logger.Error("failed to create transaction extension", "nonce", string(a.event.Nonce), "err", err)
		return err
	}

	a.ext.Store(ext)

	return nil
}

// assemble performs one attempt. The peer signature set is fetched once and
// used for both the transaction and the ranking; signatures arriving later
// are only seen by a new attempt.
func (a *withdrawActuator) assemble(ctx context.Context) (*types.TransactionExtension, error) {
	w, err := a.event.Withdrawal(a.eventType)
	if err != nil {
		return nil, err
	}

	signs, err := a.deps.SideChain.WithdrawOracleSigns(ctx, w.Nonce)
	if err != nil {
		return nil, types.WrapGateway(err, "fetch oracle signs")
	}
	// the contract has no acknowledged signer yet, so there is nothing to
	// submit; a later attempt sees the signatures once peers post them
	if len(signs) == 0 {
		return nil, types.ErrGateway.Wrapf("no oracle signs for nonce %s", w.Nonce)
	}

	a.logger.Info("assembling withdrawal", "from", w.From, "value", w.Value, "nonce", w.Nonce, "token", w.Token, "signs", len(signs))

	tx, err := a.deps.MainChain.BuildWithdrawTx(ctx, w, signs)
	if err != nil {
		return nil, types.WrapGateway(err, "build withdraw tx")
	}

	own, err := a.deps.SideChain.WithdrawSign(ctx, w)
	if err != nil {
		return nil, types.WrapGateway(err, "compute own sign")
	}

	rank, present := sign.Rank(own, signs)
	if !present {
		a.logger.Info("own sign not acknowledged yet, lowest broadcast priority", "nonce", w.Nonce)
	}
	delay := sign.GetDelay(own, signs, a.deps.DelayStep)

	a.logger.Debug("transaction extension ready", "nonce", w.Nonce, "tx", tx.ID, "rank", rank, "delay", delay)

	return types.NewTransactionExtension(a.NonceKey(), tx, delay), nil
}

func (a *withdrawActuator) TransactionExtension() *types.TransactionExtension {
	return a.ext.Load()
}

func (a *withdrawActuator) Message() (*types.Envelope, error) {
	return types.PackWithdrawEvent(a.event, a.eventType, a.TaskTarget())
}

func (a *withdrawActuator) NonceKey() []byte {
	return types.NonceKey(a.eventType.NoncePrefix(), a.event.Nonce)
}

func (a *withdrawActuator) Nonce() []byte {
	return bytes.Clone(a.event.Nonce)
}

func (a *withdrawActuator) WithdrawDataHash(ctx context.Context) (string, error) {
	w, err := a.event.Withdrawal(a.eventType)
	if err != nil {
		return "", err
	}

	hash, err := a.deps.SideChain.WithdrawDataHash(ctx, w)
	if err != nil {
		return "", types.WrapGateway(err, "withdraw data hash")
	}

	return hex.EncodeToString(hash), nil
}
