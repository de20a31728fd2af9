package vigil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/service/api"
	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/notify"
	"github.com/viant/vigil/service/notify/webhook"
	"github.com/viant/vigil/service/runner"
	"github.com/viant/vigil/service/runner/command"
	"github.com/viant/vigil/service/strategy"
	"github.com/viant/vigil/service/tracker"
	"github.com/viant/vigil/tracing"
)

// Service owns every component of one agent process.
type Service struct {
	config         *Config
	logger         *slog.Logger
	clock          clock.Clock
	stores         *Stores
	ownStores      bool
	notifier       notify.Notifier
	sinks          []notify.Sink
	dispatcher     *notify.Service
	executors      []runner.Executor
	commandOptions []command.Option
	commands       *command.Executor
	gate           *approval.Service
	registry       *strategy.Service
	tracker        *tracker.Tracker
	runner         *runner.Runner
	handler        *api.Handler
}

// New builds the service from cfg; a nil cfg means DefaultConfig().
// Strategies in cfg are registered unless already persisted.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{config: cfg, logger: slog.Default(), clock: clock.System}
	for _, opt := range opts {
		opt(s)
	}
	if err := tracing.Setup(&cfg.Tracing); err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	if s.stores == nil {
		stores, err := OpenStores(ctx, &cfg.Store)
		if err != nil {
			return nil, err
		}
		s.stores, s.ownStores = stores, true
	}
	if s.notifier == nil {
		s.initNotifier(ctx)
	}

	policy := cfg.Approval.Policy
	s.gate = approval.New(ctx,
		approval.WithStore(s.stores.Requests),
		approval.WithPolicy(&policy),
		approval.WithNotifier(s.notifier),
		approval.WithClock(s.clock),
		approval.WithLogger(s.logger),
		approval.WithDefaultTimeout(cfg.Approval.DefaultTimeout),
	)

	registry, err := strategy.New(ctx,
		strategy.WithStore(s.stores.Strategies),
		strategy.WithClock(s.clock),
		strategy.WithLogger(s.logger),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.registry = registry
	for _, seed := range cfg.Strategies {
		added, err := registry.Register(ctx, seed)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to register strategy %s: %w", seed.ID, err)
		}
		if added {
			s.logger.Info("strategy registered", "strategy", seed.ID, "type", seed.Type)
		}
	}

	s.tracker = tracker.New(ctx,
		tracker.WithThreshold(cfg.Breaker.FailureThreshold),
		tracker.WithStore(s.stores.Histories),
		tracker.WithDeactivator(registry),
		tracker.WithNotifier(s.notifier),
		tracker.WithClock(s.clock),
		tracker.WithLogger(s.logger),
	)

	s.commands = command.New(append([]command.Option{command.WithGate(s.gate), command.WithLogger(s.logger)}, s.commandOptions...)...)
	s.runner = runner.New(
		runner.WithExecutors(s.executors...),
		runner.WithExecutors(s.commands),
		runner.WithRegistry(registry),
		runner.WithTracker(s.tracker),
		runner.WithNotifier(s.notifier),
		runner.WithClock(s.clock),
		runner.WithLogger(s.logger),
	)
	s.handler = api.New(
		api.WithGate(s.gate),
		api.WithStrategies(registry),
		api.WithRunner(s.runner),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
		api.WithLogger(s.logger),
	)
	return s, nil
}

func (s *Service) initNotifier(ctx context.Context) {
	cfg := s.config.Notifier
	sinks := append([]notify.Sink(nil), s.sinks...)
	if cfg.Log {
		sinks = append(sinks, &notify.LogSink{Logger: s.logger})
	}
	if cfg.WebhookURL != "" || (cfg.WebhookSecret != nil && cfg.WebhookSecret.URL != "") {
		sinks = append(sinks, webhook.New(
			webhook.WithURL(cfg.WebhookURL),
			webhook.WithSecret(cfg.WebhookSecret),
			webhook.WithUsername(cfg.Username),
		))
	}
	if len(sinks) == 0 {
		s.notifier = notify.Nop
		return
	}
	s.dispatcher = notify.NewService(cfg.Dispatch, sinks, notify.WithLogger(s.logger))
	s.dispatcher.Start(context.WithoutCancel(ctx))
	s.notifier = s.dispatcher
}

// Config returns the configuration in use.
func (s *Service) Config() *Config { return s.config }

// Gate returns the approval gate.
func (s *Service) Gate() *approval.Service { return s.gate }

// Registry returns the strategy registry.
func (s *Service) Registry() *strategy.Service { return s.registry }

// Tracker returns the execution tracker.
func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// Runner returns the strategy runner.
func (s *Service) Runner() *runner.Runner { return s.runner }

// Handler returns the HTTP API handler.
func (s *Service) Handler() http.Handler { return s.handler }

// Notifier returns the notifier shared by all components.
func (s *Service) Notifier() notify.Notifier { return s.notifier }

// Serve runs the HTTP API, the expiry sweep and, when configured, periodic
// strategy runs until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	stopSweep := approval.AutoSweep(ctx, s.gate, s.config.Approval.SweepInterval)
	defer stopSweep()
	if interval := s.config.Runner.Interval; interval > 0 {
		go s.runEvery(ctx, interval)
	}

	server := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Service) runEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.runner.RunAll(ctx); err != nil {
				s.logger.Warn("scheduled run failed", "error", err)
			}
		}
	}
}

// Close releases sessions, delivers queued notifications within the
// dispatcher's drain timeout and closes store connections.
func (s *Service) Close() error {
	var errs []error
	if s.commands != nil {
		errs = append(errs, s.commands.Close())
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
	if s.ownStores {
		errs = append(errs, s.stores.Close())
	}
	return errors.Join(errs...)
}
