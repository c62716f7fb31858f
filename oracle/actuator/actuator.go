// Package actuator turns decoded withdrawal events into broadcast-ready
// main-chain transactions.
package actuator

import (
	"context"
	"errors"
	"time"

	"github.com/GPTx-global/sun-network-oracle/oracle/gateway"
	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// Actuator processes a single withdrawal event
type Actuator interface {
	Type() types.EventType
	TaskTarget() types.TaskTarget

	// CreateTransactionExtension assembles the transaction once. Later calls
	// return nil without touching the gateways. A failed attempt leaves the
	// actuator untouched and may be retried.
	CreateTransactionExtension(ctx context.Context) error

	// TransactionExtension returns the assembled wrapper, nil until created
	TransactionExtension() *types.TransactionExtension

	// Message re-encodes the event for relaying
	Message() (*types.Envelope, error)

	// NonceKey returns the asset-namespaced idempotency key
	NonceKey() []byte

	// Nonce returns the raw withdrawal nonce
	Nonce() []byte

	// WithdrawDataHash returns the hex digest the oracles sign
	WithdrawDataHash(ctx context.Context) (string, error)
}

// Dependencies are the collaborators shared by all actuators of a process
type Dependencies struct {
	SideChain gateway.SideChain
	MainChain gateway.MainChain
	DelayStep time.Duration
	Logger    log.Logger
}

func (d Dependencies) normalize() (Dependencies, error) {
	if d.SideChain == nil || d.MainChain == nil {
		return d, errors.New("actuator requires side chain and main chain gateways")
	}

	if d.DelayStep <= 0 {
		d.DelayStep = sign.DefaultDelayStep
	}

	if d.Logger == nil {
		d.Logger = log.NewNop()
	}

	return d, nil
}

// WithdrawTRXActuator withdraws the native coin
type WithdrawTRXActuator struct {
	*withdrawActuator
}

// WithdrawTRC10Actuator withdraws a TRC10 token
type WithdrawTRC10Actuator struct {
	*withdrawActuator
}

// WithdrawTRC20Actuator withdraws a TRC20 token
type WithdrawTRC20Actuator struct {
	*withdrawActuator
}

func NewWithdrawTRXActuator(from, value, nonce string, deps Dependencies) (*WithdrawTRXActuator, error) {
	a, err := newFromFields(types.EventTypeWithdrawTRX, from, value, nonce, "", deps)
	if err != nil {
		return nil, err
	}

	return &WithdrawTRXActuator{a}, nil
}

func NewWithdrawTRC10Actuator(from, tokenID, value, nonce string, deps Dependencies) (*WithdrawTRC10Actuator, error) {
	a, err := newFromFields(types.EventTypeWithdrawTRC10, from, value, nonce, tokenID, deps)
	if err != nil {
		return nil, err
	}

	return &WithdrawTRC10Actuator{a}, nil
}

func NewWithdrawTRC20Actuator(from, contract, value, nonce string, deps Dependencies) (*WithdrawTRC20Actuator, error) {
	a, err := newFromFields(types.EventTypeWithdrawTRC20, from, value, nonce, contract, deps)
	if err != nil {
		return nil, err
	}

	return &WithdrawTRC20Actuator{a}, nil
}

// FromEnvelope selects the actuator matching the envelope's event type.
// Decode errors are returned to the caller: the event cannot be processed.
func FromEnvelope(env *types.Envelope, deps Dependencies) (Actuator, error) {
	ev, err := types.UnpackWithdrawEvent(env)
	if err != nil {
		return nil, err
	}

	if env.Target != types.TaskTargetMainChain {
		return nil, types.ErrDecode.Wrapf("withdrawal must target %s, got %s", types.TaskTargetMainChain, env.Target)
	}

	a, err := newWithdrawActuator(env.Type, ev, deps)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case types.EventTypeWithdrawTRX:
		return &WithdrawTRXActuator{a}, nil
	case types.EventTypeWithdrawTRC10:
		return &WithdrawTRC10Actuator{a}, nil
	case types.EventTypeWithdrawTRC20:
		return &WithdrawTRC20Actuator{a}, nil
	default:
		return nil, types.ErrUnknownEventType.Wrapf("%d", env.Type)
	}
}

// FromBytes decodes a wire envelope and builds its actuator
func FromBytes(bz []byte, deps Dependencies) (Actuator, error) {
	env, err := types.UnmarshalEnvelope(bz)
	if err != nil {
		return nil, err
	}

	return FromEnvelope(env, deps)
}

func newFromFields(t types.EventType, from, value, nonce, token string, deps Dependencies) (*withdrawActuator, error) {
	ev, err := types.NewWithdrawEvent(t, from, value, nonce, token)
	if err != nil {
		return nil, err
	}

	return newWithdrawActuator(t, ev, deps)
}
