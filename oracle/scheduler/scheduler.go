package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/GPTx-global/sun-network-oracle/oracle/actuator"
	"github.com/GPTx-global/sun-network-oracle/oracle/gateway"
	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/retry"
	"github.com/GPTx-global/sun-network-oracle/oracle/store"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

var ErrStopped = errors.New("scheduler stopped")

// handoffTimeout bounds republishing unfinished work during shutdown
const handoffTimeout = 5 * time.Second

// Store records the processing state of nonce keys
type Store interface {
	Status(key []byte) (store.Status, error)
	SetStatus(key []byte, status store.Status) error
	Delete(key []byte) error
}

// Republisher puts an event back on the transport when this node gave up on it
type Republisher interface {
	Publish(ctx context.Context, env *types.Envelope) error
}

type Config struct {
	Workers   int
	QueueSize int
	Actuate   *retry.Config
	Broadcast *retry.Config
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Actuate == nil {
		c.Actuate = retry.DefaultConfig()
	}
	if c.Broadcast == nil {
		c.Broadcast = retry.BroadcastConfig()
	}

	return c
}

// Scheduler runs actuators on a worker pool, waits out each transaction's
// broadcast delay and records the outcome by nonce key.
type Scheduler struct {
	cfg    Config
	logger log.Logger

	store       Store
	broadcaster gateway.Broadcaster
	republisher Republisher

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
	inFlight cmap.ConcurrentMap[string, actuator.Actuator]
	queue    chan actuator.Actuator
}

// New creates a scheduler. republisher may be nil.
func New(cfg Config, st Store, broadcaster gateway.Broadcaster, republisher Republisher, logger log.Logger) *Scheduler {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.NewNop()
	}

	return &Scheduler{
		cfg:         cfg,
		logger:      logger.With("module", "scheduler"),
		store:       st,
		broadcaster: broadcaster,
		republisher: republisher,
		quit:        make(chan struct{}),
		inFlight:    cmap.New[actuator.Actuator](),
		queue:       make(chan actuator.Actuator, cfg.QueueSize),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		select {
		case <-s.quit:
		case <-ctx.Done():
		}
		cancel()
	}()

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Stop waits for the workers and hands every withdrawal that did not reach
// the broadcast to the republisher, queued ones included.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.wg.Wait()

	for {
		select {
		case a := <-s.queue:
			s.handoff(s.logger.With("key", string(a.NonceKey())), a)
			s.inFlight.Remove(string(a.NonceKey()))
		default:
			return
		}
	}
}

// Submit queues an actuator. A nonce key that is in flight or already
// broadcast is rejected with ErrAlreadyProcessed.
func (s *Scheduler) Submit(ctx context.Context, a actuator.Actuator) error {
	select {
	case <-s.quit:
		return ErrStopped
	default:
	}

	key := string(a.NonceKey())

	if !s.inFlight.SetIfAbsent(key, a) {
		return types.ErrAlreadyProcessed.Wrapf("%s in flight", key)
	}

	status, err := s.store.Status(a.NonceKey())
	if err != nil {
		s.inFlight.Remove(key)
		return err
	}
	if status.Done() {
		s.inFlight.Remove(key)
		return types.ErrAlreadyProcessed.Wrapf("%s %s", key, status)
	}

	select {
	case s.queue <- a:
		metrics.IncrCounter([]string{"oracle", "withdraw", "submitted"}, 1)
		return nil
	case <-ctx.Done():
		s.inFlight.Remove(key)
		return ctx.Err()
	case <-s.quit:
		s.inFlight.Remove(key)
		return ErrStopped
	}
}

// InFlight returns the number of nonce keys being processed
func (s *Scheduler) InFlight() int {
	return s.inFlight.Count()
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case a := <-s.queue:
			s.process(ctx, a)
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) process(ctx context.Context, a actuator.Actuator) {
	key := a.NonceKey()
	defer s.inFlight.Remove(string(key))

	logger := s.logger.With("key", string(key))
	start := time.Now()

	err := retry.Do(ctx, logger, s.cfg.Actuate, func() error {
		return a.CreateTransactionExtension(ctx)
	}, types.IsRetryable)
	if err != nil {
		s.fail(ctx, logger, a, err)
		return
	}
	metrics.MeasureSince([]string{"oracle", "withdraw", "actuate"}, start)

	ext := a.TransactionExtension()
	if err := s.store.SetStatus(key, store.StatusProcessing); err != nil {
		logger.Error("failed to record status", "err", err)
		return
	}

	logger.Info("waiting to broadcast", "tx", ext.Transaction().ID, "delay", ext.Delay())

	timer := time.NewTimer(ext.Delay())
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		logger.Info("shutdown before broadcast")
		s.handoff(logger, a)
		return
	}

	// another process sharing the store may have finished it meanwhile
	if status, err := s.store.Status(key); err == nil && status.Done() {
		logger.Info("already broadcast, skipping")
		return
	}

	tx := ext.Transaction()
	err = retry.Do(ctx, logger, s.cfg.Broadcast, func() error {
		return s.broadcaster.BroadcastTx(ctx, tx)
	}, retry.BroadcastIsRetryable)
	if err != nil {
		s.fail(ctx, logger, a, err)
		return
	}

	if err := s.store.SetStatus(key, store.StatusBroadcasted); err != nil {
		logger.Error("failed to record status", "err", err)
	}

	metrics.IncrCounter([]string{"oracle", "withdraw", "broadcast"}, 1)
	logger.Info("withdrawal broadcast", "tx", tx.ID)
}

// fail records a failed actuation. Transient failures are republished so
// the event is retried later, here or by another node.
func (s *Scheduler) fail(ctx context.Context, logger log.Logger, a actuator.Actuator, err error) {
	metrics.IncrCounter([]string{"oracle", "withdraw", "failed"}, 1)
	logger.Error("withdrawal failed", "err", err)

	if ctx.Err() != nil {
		s.handoff(logger, a)
		return
	}

	if serr := s.store.SetStatus(a.NonceKey(), store.StatusFailed); serr != nil {
		logger.Error("failed to record status", "err", serr)
	}

	if !retry.DefaultIsRetryable(err) {
		return
	}

	s.republish(ctx, logger, a)
}

// handoff returns an unfinished withdrawal to the transport during shutdown.
// The processing status is cleared so a restarted node accepts the event.
func (s *Scheduler) handoff(logger log.Logger, a actuator.Actuator) {
	ctx, cancel := context.WithTimeout(context.Background(), handoffTimeout)
	defer cancel()

	if !s.republish(ctx, logger, a) {
		logger.Error("withdrawal left unfinished at shutdown")
		return
	}

	if status, err := s.store.Status(a.NonceKey()); err == nil && status == store.StatusProcessing {
		if err := s.store.Delete(a.NonceKey()); err != nil {
			logger.Error("failed to clear status", "err", err)
		}
	}
}

func (s *Scheduler) republish(ctx context.Context, logger log.Logger, a actuator.Actuator) bool {
	if s.republisher == nil {
		return false
	}

	env, err := a.Message()
	if err != nil {
		logger.Error("failed to encode event for republish", "err", err)
		return false
	}

	if err := s.republisher.Publish(ctx, env); err != nil {
		logger.Error("failed to republish event", "err", err)
		return false
	}

	metrics.IncrCounter([]string{"oracle", "withdraw", "republished"}, 1)

	return true
}
