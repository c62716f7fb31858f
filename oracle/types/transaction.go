package types

import (
	"bytes"
	"time"
)

// Transaction is a signed main-chain transaction ready for broadcast.
// Raw holds the node API representation; the oracle never inspects it.
type Transaction struct {
	ID  string
	Raw []byte
}

// TransactionExtension pairs a built transaction with its idempotency key
// and the delay the scheduler must wait before broadcasting it.
// It is immutable once constructed.
type TransactionExtension struct {
	key   []byte
	tx    Transaction
	delay time.Duration
}

func NewTransactionExtension(key []byte, tx Transaction, delay time.Duration) *TransactionExtension {
	if delay < 0 {
		delay = 0
	}

	return &TransactionExtension{
		key:   bytes.Clone(key),
		tx:    Transaction{ID: tx.ID, Raw: bytes.Clone(tx.Raw)},
		delay: delay,
	}
}

func (te *TransactionExtension) Key() []byte {
	return bytes.Clone(te.key)
}

func (te *TransactionExtension) Transaction() Transaction {
	return Transaction{ID: te.tx.ID, Raw: bytes.Clone(te.tx.Raw)}
}

func (te *TransactionExtension) Delay() time.Duration {
	return te.delay
}
