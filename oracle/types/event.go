package types

import (
	"bytes"
	"fmt"

	"github.com/GPTx-global/sun-network-oracle/oracle/address"
)

// EventType identifies the payload embedded in an Envelope
type EventType int32

const (
	EventTypeUnspecified EventType = iota
	EventTypeWithdrawTRX
	EventTypeWithdrawTRC10
	EventTypeWithdrawTRC20
)

// EventTypes lists every supported withdrawal event type
var EventTypes = []EventType{
	EventTypeWithdrawTRX,
	EventTypeWithdrawTRC10,
	EventTypeWithdrawTRC20,
}

func (t EventType) String() string {
	switch t {
	case EventTypeWithdrawTRX:
		return "WITHDRAW_TRX"
	case EventTypeWithdrawTRC10:
		return "WITHDRAW_TRC10"
	case EventTypeWithdrawTRC20:
		return "WITHDRAW_TRC20"
	default:
		return fmt.Sprintf("UNSPECIFIED(%d)", int32(t))
	}
}

// TypeURL returns the Any type url of the payload carried by this event type
func (t EventType) TypeURL() string {
	switch t {
	case EventTypeWithdrawTRX:
		return typeURLPrefix + "WithdrawTRXEvent"
	case EventTypeWithdrawTRC10:
		return typeURLPrefix + "WithdrawTRC10Event"
	case EventTypeWithdrawTRC20:
		return typeURLPrefix + "WithdrawTRC20Event"
	default:
		return ""
	}
}

// NoncePrefix returns the idempotency key prefix of this event type
func (t EventType) NoncePrefix() string {
	switch t {
	case EventTypeWithdrawTRX:
		return PrefixWithdrawTRX
	case EventTypeWithdrawTRC10:
		return PrefixWithdrawTRC10
	case EventTypeWithdrawTRC20:
		return PrefixWithdrawTRC20
	default:
		return ""
	}
}

// Validate returns an error for event types this oracle cannot process
func (t EventType) Validate() error {
	switch t {
	case EventTypeWithdrawTRX, EventTypeWithdrawTRC10, EventTypeWithdrawTRC20:
		return nil
	default:
		return ErrUnknownEventType.Wrapf("%d", int32(t))
	}
}

// TaskTarget identifies the chain the resulting transaction is sent to
type TaskTarget int32

const (
	TaskTargetMainChain TaskTarget = iota
	TaskTargetSideChain
)

func (t TaskTarget) String() string {
	switch t {
	case TaskTargetMainChain:
		return "MAIN_CHAIN"
	case TaskTargetSideChain:
		return "SIDE_CHAIN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(t))
	}
}

// WithdrawEvent is the binary payload of a withdrawal event.
// Value and Nonce hold UTF-8 strings so amounts survive chain boundaries.
type WithdrawEvent struct {
	From  []byte
	Value []byte
	Nonce []byte
	// Token is empty for TRX, the decimal token id for TRC10
	// and the binary token contract address for TRC20.
	Token []byte
}

// Equal reports whether two events carry the same fields
func (e *WithdrawEvent) Equal(o *WithdrawEvent) bool {
	if e == nil || o == nil {
		return e == o
	}

	return bytes.Equal(e.From, o.From) &&
		bytes.Equal(e.Value, o.Value) &&
		bytes.Equal(e.Nonce, o.Nonce) &&
		bytes.Equal(e.Token, o.Token)
}

// ValidateFor checks the fields required by the given event type
func (e *WithdrawEvent) ValidateFor(t EventType) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if err := address.Validate(e.From); err != nil {
		return ErrInvalidAddress.Wrap(err.Error())
	}

	if len(e.Value) == 0 {
		return ErrInvalidAmount.Wrap("empty value")
	}

	if len(e.Nonce) == 0 {
		return ErrInvalidNonce.Wrap("empty nonce")
	}

	switch t {
	case EventTypeWithdrawTRX:
		if len(e.Token) != 0 {
			return ErrDecode.Wrap("unexpected token on TRX withdrawal")
		}
	case EventTypeWithdrawTRC10:
		if len(e.Token) == 0 {
			return ErrDecode.Wrap("missing token id")
		}
	case EventTypeWithdrawTRC20:
		if err := address.Validate(e.Token); err != nil {
			return ErrInvalidAddress.Wrapf("token contract: %s", err)
		}
	}

	return nil
}

// Withdrawal is the display form of a WithdrawEvent handed to gateways
type Withdrawal struct {
	Type  EventType
	From  string // base58check
	Value string // decimal
	Nonce string
	Token string // token id or base58check contract, empty for TRX
}

// Withdrawal renders the event into its display form
func (e *WithdrawEvent) Withdrawal(t EventType) (Withdrawal, error) {
	if err := e.ValidateFor(t); err != nil {
		return Withdrawal{}, err
	}

	from, err := address.Encode(e.From)
	if err != nil {
		return Withdrawal{}, ErrInvalidAddress.Wrap(err.Error())
	}

	w := Withdrawal{
		Type:  t,
		From:  from,
		Value: string(e.Value),
		Nonce: string(e.Nonce),
	}

	switch t {
	case EventTypeWithdrawTRC10:
		w.Token = string(e.Token)
	case EventTypeWithdrawTRC20:
		if w.Token, err = address.Encode(e.Token); err != nil {
			return Withdrawal{}, ErrInvalidAddress.Wrap(err.Error())
		}
	}

	return w, nil
}

// NewWithdrawEvent builds the binary payload from display fields
func NewWithdrawEvent(t EventType, from, value, nonce, token string) (*WithdrawEvent, error) {
	fromBz, err := address.Decode(from)
	if err != nil {
		return nil, ErrInvalidAddress.Wrap(err.Error())
	}

	ev := &WithdrawEvent{
		From:  fromBz,
		Value: []byte(value),
		Nonce: []byte(nonce),
	}

	switch t {
	case EventTypeWithdrawTRC10:
		ev.Token = []byte(token)
	case EventTypeWithdrawTRC20:
		if ev.Token, err = address.Decode(token); err != nil {
			return nil, ErrInvalidAddress.Wrapf("token contract: %s", err)
		}
	}

	if err := ev.ValidateFor(t); err != nil {
		return nil, err
	}

	return ev, nil
}
