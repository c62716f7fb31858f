// Package gateway defines the chain collaborators the actuators depend on.
// Implementations are shared by every actuator and must be safe for
// concurrent use; timeouts and retries are their own concern.
package gateway

import (
	"context"

	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// SideChain is the side-chain gateway facade
type SideChain interface {
	// WithdrawOracleSigns returns the signatures every oracle has posted for the nonce
	WithdrawOracleSigns(ctx context.Context, nonce string) ([]string, error)

	// WithdrawSign returns this oracle's signature over the withdrawal
	WithdrawSign(ctx context.Context, w types.Withdrawal) (string, error)

	// WithdrawDataHash returns the digest all oracles sign for the withdrawal
	WithdrawDataHash(ctx context.Context, w types.Withdrawal) ([]byte, error)
}

// MainChain is the main-chain gateway facade
type MainChain interface {
	// BuildWithdrawTx assembles the signed withdrawal transaction carrying the oracle signatures
	BuildWithdrawTx(ctx context.Context, w types.Withdrawal, signs []string) (types.Transaction, error)
}

// Broadcaster submits a finished transaction
type Broadcaster interface {
	BroadcastTx(ctx context.Context, tx types.Transaction) error
}
