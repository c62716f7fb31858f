package types_test

import (
	"errors"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

func TestNonceKey(t *testing.T) {
	require.Equal(t, []byte("withdraw_2_abc123"), types.NonceKey(types.PrefixWithdrawTRX, []byte("abc123")))
}

func TestNoncePrefixesAreDistinct(t *testing.T) {
	seen := make(map[string]types.EventType)
	for _, et := range types.EventTypes {
		prefix := et.NoncePrefix()
		require.NotEmpty(t, prefix)
		require.NotEmpty(t, et.TypeURL())
		_, dup := seen[prefix]
		require.False(t, dup, "prefix %s reused by %s", prefix, et)
		seen[prefix] = et
	}

	require.Empty(t, types.EventTypeUnspecified.NoncePrefix())
}

func TestTransactionExtensionIsImmutable(t *testing.T) {
	key := []byte("withdraw_2_1")
	raw := []byte(`{"txID":"aa"}`)

	te := types.NewTransactionExtension(key, types.Transaction{ID: "aa", Raw: raw}, -time.Second)
	key[0] = 'X'
	raw[0] = 'X'

	require.Equal(t, []byte("withdraw_2_1"), te.Key())
	require.Equal(t, `{"txID":"aa"}`, string(te.Transaction().Raw))
	require.Zero(t, te.Delay())

	te.Key()[0] = 'Y'
	require.Equal(t, []byte("withdraw_2_1"), te.Key())
}

func TestIsRetryable(t *testing.T) {
	require.True(t, types.IsRetryable(types.ErrGateway.Wrap("timeout")))
	require.False(t, types.IsRetryable(types.ErrDecode.Wrap("bad")))
	require.False(t, types.IsRetryable(nil))
}

func TestWrapGateway(t *testing.T) {
	cause := errors.New("connection reset")
	err := types.WrapGateway(cause, "fetch oracle signs")
	require.ErrorIs(t, err, cause)
	require.True(t, errorsmod.IsOf(err, types.ErrGateway))
	require.True(t, types.IsRetryable(err))
	require.Equal(t, "fetch oracle signs: gateway call failed: connection reset", err.Error())

	invalid := types.ErrInvalidNonce.Wrap("\"abc123\" is not a 256-bit integer")
	err = types.WrapGateway(invalid, "fetch oracle signs")
	require.ErrorIs(t, err, invalid)
	require.True(t, types.IsPermanent(err))
	require.False(t, errorsmod.IsOf(err, types.ErrGateway))
	require.False(t, types.IsRetryable(err))

	require.NoError(t, types.WrapGateway(nil, "noop"))
}
