package daemon

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GPTx-global/sun-network-oracle/oracle/actuator"
	"github.com/GPTx-global/sun-network-oracle/oracle/config"
	"github.com/GPTx-global/sun-network-oracle/oracle/gateway"
	"github.com/GPTx-global/sun-network-oracle/oracle/gateway/tron"
	"github.com/GPTx-global/sun-network-oracle/oracle/health"
	"github.com/GPTx-global/sun-network-oracle/oracle/log"
	"github.com/GPTx-global/sun-network-oracle/oracle/relay"
	"github.com/GPTx-global/sun-network-oracle/oracle/scheduler"
	"github.com/GPTx-global/sun-network-oracle/oracle/sign"
	"github.com/GPTx-global/sun-network-oracle/oracle/store"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

// Source delivers event envelopes and accepts the ones this node gives up on
type Source interface {
	Run(ctx context.Context, handle func(context.Context, *types.Envelope) error) error
	Publish(ctx context.Context, env *types.Envelope) error
	Ping(ctx context.Context) error
	Close() error
}

// Components are the collaborators a daemon is assembled from
type Components struct {
	SideChain   gateway.SideChain
	MainChain   gateway.MainChain
	Broadcaster gateway.Broadcaster
	Source      Source
	Store       *store.NonceStore
	Scheduler   scheduler.Config
	DelayStep   time.Duration

	// Checks are extra health checks, e.g. node pings
	Checks []health.Check

	// HealthAddr enables the health server when set
	HealthAddr     string
	HealthInterval time.Duration
}

type Daemon struct {
	logger log.Logger

	deps      actuator.Dependencies
	source    Source
	store     *store.NonceStore
	scheduler *scheduler.Scheduler
	checker   *health.Checker
	server    *health.Server
}

// New assembles a daemon from the loaded configuration
func New(logger log.Logger) (*Daemon, error) {
	key, err := config.PrivateKey()
	if err != nil {
		return nil, err
	}

	signer, err := sign.NewSigner(key)
	if err != nil {
		return nil, err
	}

	mainClient := tron.NewClient(tron.ClientConfig{
		Endpoint:          config.MainChainEndpoint(),
		RequestsPerSecond: config.MainChainRequestsPerSecond(),
	}, logger)
	sideClient := tron.NewClient(tron.ClientConfig{
		Endpoint:          config.SideChainEndpoint(),
		RequestsPerSecond: config.SideChainRequestsPerSecond(),
	}, logger)

	mainChain, err := tron.NewMainChainGateway(mainClient, signer, config.MainChainGateway(), config.FeeLimit())
	if err != nil {
		return nil, err
	}

	sideChain, err := tron.NewSideChainGateway(sideClient, signer, config.SideChainGateway())
	if err != nil {
		return nil, err
	}

	st, err := store.Open(config.StoreBackend(), config.StoreDir())
	if err != nil {
		return nil, err
	}

	rl := relay.New(relay.Config{
		Addr:     config.RelayAddr(),
		Password: config.RelayPassword(),
		DB:       config.RelayDB(),
		Queue:    config.RelayQueue(),
	}, logger)

	c := Components{
		SideChain:   sideChain,
		MainChain:   mainChain,
		Broadcaster: mainChain,
		Source:      rl,
		Store:       st,
		Scheduler: scheduler.Config{
			Workers:   config.Workers(),
			QueueSize: config.QueueSize(),
		},
		DelayStep: config.DelayStep(),
		Checks: []health.Check{
			health.NewCheck("main_chain", mainChain.Ping),
			health.NewCheck("side_chain", sideChain.Ping),
		},
	}
	if config.HealthEnabled() {
		c.HealthAddr = config.HealthAddr()
		c.HealthInterval = config.HealthInterval()
	}

	logger.Info("oracle configured", "address", signer.Address(), "main_chain", config.MainChainEndpoint(), "side_chain", config.SideChainEndpoint())

	return NewWithComponents(c, logger)
}

func NewWithComponents(c Components, logger log.Logger) (*Daemon, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if c.Source == nil || c.Store == nil || c.Broadcaster == nil {
		return nil, fmt.Errorf("daemon requires a source, a store and a broadcaster")
	}

	d := &Daemon{
		logger: logger.With("module", "daemon"),
		deps: actuator.Dependencies{
			SideChain: c.SideChain,
			MainChain: c.MainChain,
			DelayStep: c.DelayStep,
			Logger:    logger,
		},
		source:    c.Source,
		store:     c.Store,
		scheduler: scheduler.New(c.Scheduler, c.Store, c.Broadcaster, c.Source, logger),
		checker:   health.NewChecker(c.HealthInterval, logger),
	}

	d.checker.AddCheck(health.NewCheck("relay", c.Source.Ping))
	d.checker.AddCheck(health.NewCheck("store", func(context.Context) error { return c.Store.Ping() }))
	for _, check := range c.Checks {
		d.checker.AddCheck(check)
	}

	if c.HealthAddr != "" {
		sink, err := health.SetupMetrics("oracled", 10*time.Second, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("failed to set up metrics: %w", err)
		}
		d.server = health.NewServer(c.HealthAddr, d.checker, sink, d.scheduler.InFlight, logger)
	}

	return d, nil
}

// Handle turns an envelope into an actuator and schedules it
func (d *Daemon) Handle(ctx context.Context, env *types.Envelope) error {
	a, err := actuator.FromEnvelope(env, d.deps)
	if err != nil {
		return err
	}

	return d.scheduler.Submit(ctx, a)
}

// Run processes events until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	if pending, err := d.store.Pending(); err == nil && len(pending) > 0 {
		d.logger.Info("withdrawals were in progress at last shutdown", "count", len(pending))
	}

	d.scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.source.Run(gctx, d.Handle)
	})

	g.Go(func() error {
		return d.checker.Start(gctx)
	})

	if d.server != nil {
		g.Go(func() error {
			return d.server.Start(gctx)
		})
	}

	d.logger.Info("oracle started")
	err := g.Wait()

	d.scheduler.Stop()
	d.close()
	d.logger.Info("oracle stopped")

	return err
}

func (d *Daemon) close() {
	if err := d.source.Close(); err != nil {
		d.logger.Error("failed to close relay", "err", err)
	}

	if err := d.store.Close(); err != nil {
		d.logger.Error("failed to close store", "err", err)
	}
}
