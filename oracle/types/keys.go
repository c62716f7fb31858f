package types

const (
	// ModuleName defines the codespace of the oracle errors
	ModuleName = "oracle"
)

// Nonce key prefixes, one per withdrawal asset. They must stay pairwise
// distinct so equal nonces of different assets never share a key.
const (
	PrefixWithdrawTRX   = "withdraw_2_"
	PrefixWithdrawTRC10 = "withdraw_3_"
	PrefixWithdrawTRC20 = "withdraw_4_"
)

// NonceKey returns the idempotency key for a withdrawal nonce
func NonceKey(prefix string, nonce []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(nonce))
	key = append(key, prefix...)
	return append(key, nonce...)
}
