// Package relay moves encoded event envelopes between oracle processes
// over a Redis list.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/redis/go-redis/v9"

	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

const DefaultQueue = "oracle:withdraw:events"

// listClient is the subset of the Redis client the relay uses
type listClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type Config struct {
	Addr        string
	Password    string
	DB          int
	Queue       string
	PollTimeout time.Duration
}

// Relay is both the event source and the republisher of the daemon
type Relay struct {
	client  listClient
	queue   string
	timeout time.Duration
	logger  log.Logger
}

func New(cfg Config, logger log.Logger) *Relay {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return newRelay(rdb, cfg.Queue, cfg.PollTimeout, logger)
}

func newRelay(client listClient, queue string, timeout time.Duration, logger log.Logger) *Relay {
	if queue == "" {
		queue = DefaultQueue
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &Relay{
		client:  client,
		queue:   queue,
		timeout: timeout,
		logger:  logger.With("module", "relay", "queue", queue),
	}
}

func (r *Relay) Publish(ctx context.Context, env *types.Envelope) error {
	bz, err := env.Marshal()
	if err != nil {
		return err
	}

	if err := r.client.LPush(ctx, r.queue, bz).Err(); err != nil {
		return types.WrapGateway(err, "publish")
	}

	return nil
}

// Next blocks until an envelope arrives or ctx is done. Undecodable
// payloads are returned as ErrDecode so the caller can skip them.
func (r *Relay) Next(ctx context.Context) (*types.Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := r.client.BRPop(ctx, r.timeout, r.queue).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, types.WrapGateway(err, "receive")
		}

		if len(res) != 2 {
			return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
		}

		return types.UnmarshalEnvelope([]byte(res[1]))
	}
}

// Run passes every received envelope to handle until ctx is done
func (r *Relay) Run(ctx context.Context, handle func(context.Context, *types.Envelope) error) error {
	for {
		env, err := r.Next(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errorsmod.IsOf(err, types.ErrDecode):
			r.logger.Error("dropping undecodable event", "err", err)
			continue
		case err != nil:
			r.logger.Error("failed to receive event", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handle(ctx, env); err != nil {
			r.logger.Info("event not accepted", "type", env.Type, "err", err)
		}
	}
}

func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Relay) Close() error {
	return r.client.Close()
}
