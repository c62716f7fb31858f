package types

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

const typeURLPrefix = "type.googleapis.com/guru.bridge.v1."

// Envelope field numbers
const (
	envelopeFieldType      protowire.Number = 1
	envelopeFieldTarget    protowire.Number = 2
	envelopeFieldParameter protowire.Number = 3
)

// WithdrawEvent field numbers
const (
	eventFieldFrom  protowire.Number = 1
	eventFieldValue protowire.Number = 2
	eventFieldNonce protowire.Number = 3
	eventFieldToken protowire.Number = 4
)

var deterministic = proto.MarshalOptions{Deterministic: true}

// Envelope carries a typed event between oracle components
type Envelope struct {
	Type      EventType
	Target    TaskTarget
	Parameter *anypb.Any
}

// PackWithdrawEvent wraps a withdrawal payload into an Envelope
func PackWithdrawEvent(ev *WithdrawEvent, t EventType, target TaskTarget) (*Envelope, error) {
	if err := ev.ValidateFor(t); err != nil {
		return nil, err
	}

	return &Envelope{
		Type:   t,
		Target: target,
		Parameter: &anypb.Any{
			TypeUrl: t.TypeURL(),
			Value:   ev.Marshal(),
		},
	}, nil
}

// UnpackWithdrawEvent decodes the payload named by the envelope type
func UnpackWithdrawEvent(env *Envelope) (*WithdrawEvent, error) {
	if env == nil || env.Parameter == nil {
		return nil, ErrDecode.Wrap("empty envelope")
	}

	if err := env.Type.Validate(); err != nil {
		return nil, ErrDecode.Wrap(err.Error())
	}

	if env.Parameter.GetTypeUrl() != env.Type.TypeURL() {
		return nil, ErrDecode.Wrapf("type %s does not match payload %q", env.Type, env.Parameter.GetTypeUrl())
	}

	ev, err := UnmarshalWithdrawEvent(env.Parameter.GetValue())
	if err != nil {
		return nil, err
	}

	if err := ev.ValidateFor(env.Type); err != nil {
		return nil, ErrDecode.Wrap(err.Error())
	}

	return ev, nil
}

// Marshal encodes the envelope in protobuf wire format
func (env *Envelope) Marshal() ([]byte, error) {
	param, err := deterministic.Marshal(env.Parameter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameter: %w", err)
	}

	var bz []byte
	if env.Type != 0 {
		bz = protowire.AppendTag(bz, envelopeFieldType, protowire.VarintType)
		bz = protowire.AppendVarint(bz, uint64(env.Type))
	}
	if env.Target != 0 {
		bz = protowire.AppendTag(bz, envelopeFieldTarget, protowire.VarintType)
		bz = protowire.AppendVarint(bz, uint64(env.Target))
	}
	bz = protowire.AppendTag(bz, envelopeFieldParameter, protowire.BytesType)
	bz = protowire.AppendBytes(bz, param)

	return bz, nil
}

// UnmarshalEnvelope decodes an envelope received from the network.
// Malformed input yields ErrDecode, never a panic.
func UnmarshalEnvelope(bz []byte) (*Envelope, error) {
	env := new(Envelope)

	err := consumeFields(bz, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == envelopeFieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			env.Type = EventType(v)
			return n, nil
		case num == envelopeFieldTarget && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			env.Target = TaskTarget(v)
			return n, nil
		case num == envelopeFieldParameter && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			param := new(anypb.Any)
			if err := proto.Unmarshal(v, param); err != nil {
				return 0, err
			}
			env.Parameter = param
			return n, nil
		default:
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
	})
	if err != nil {
		return nil, ErrDecode.Wrapf("envelope: %s", err)
	}

	if env.Parameter == nil {
		return nil, ErrDecode.Wrap("envelope without parameter")
	}

	return env, nil
}

// Marshal encodes the event in protobuf wire format
func (e *WithdrawEvent) Marshal() []byte {
	var bz []byte
	for _, f := range []struct {
		num protowire.Number
		val []byte
	}{
		{eventFieldFrom, e.From},
		{eventFieldValue, e.Value},
		{eventFieldNonce, e.Nonce},
		{eventFieldToken, e.Token},
	} {
		if len(f.val) == 0 {
			continue
		}
		bz = protowire.AppendTag(bz, f.num, protowire.BytesType)
		bz = protowire.AppendBytes(bz, f.val)
	}

	return bz
}

// UnmarshalWithdrawEvent decodes a WithdrawEvent payload
func UnmarshalWithdrawEvent(bz []byte) (*WithdrawEvent, error) {
	ev := new(WithdrawEvent)

	err := consumeFields(bz, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n, nil
		}

		switch num {
		case eventFieldFrom:
			ev.From = append([]byte(nil), v...)
		case eventFieldValue:
			ev.Value = append([]byte(nil), v...)
		case eventFieldNonce:
			ev.Nonce = append([]byte(nil), v...)
		case eventFieldToken:
			ev.Token = append([]byte(nil), v...)
		}

		return n, nil
	})
	if err != nil {
		return nil, ErrDecode.Wrapf("withdraw event: %s", err)
	}

	return ev, nil
}

// consumeFields walks every field of a wire message, handing the bytes after
// the tag to fn, which returns how many bytes it consumed.
func consumeFields(bz []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]

		n, err := fn(num, typ, bz)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]
	}

	return nil
}
