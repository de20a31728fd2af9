package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/vigil/service/messaging/memory"
	"golang.org/x/time/rate"
)

// Config controls the asynchronous dispatcher.
type Config struct {
	QueueBuffer int           `json:"queueBuffer,omitempty" yaml:"queueBuffer,omitempty"`
	MaxRetries  int           `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelay  time.Duration `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"`
	// RatePerSecond limits deliveries; zero disables limiting.
	RatePerSecond float64 `json:"ratePerSecond,omitempty" yaml:"ratePerSecond,omitempty"`
	Burst         int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	// DrainTimeout bounds how long Close waits for queued notifications.
	DrainTimeout time.Duration `json:"drainTimeout,omitempty" yaml:"drainTimeout,omitempty"`
}

// DefaultConfig returns dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		QueueBuffer:   256,
		MaxRetries:    3,
		RetryDelay:    2 * time.Second,
		RatePerSecond: 1,
		Burst:         5,
		DrainTimeout:  10 * time.Second,
	}
}

// delivery is one notification with its per-sink progress. The delivered
// slice shares its backing array across redeliveries, so a retry only
// reaches the sinks that failed.
type delivery struct {
	notification Notification
	delivered    []bool
}

// Service is an asynchronous Notifier: Send only enqueues, a worker started
// with Start delivers to every sink.
type Service struct {
	sinks        []Sink
	queue        *memory.Queue[delivery]
	limiter      *rate.Limiter
	logger       *slog.Logger
	maxRetries   int
	drainTimeout time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending int
	drained chan struct{}
}

// Option customises Service.
type Option func(*Service)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a dispatcher delivering to sinks.
func NewService(config Config, sinks []Sink, opts ...Option) *Service {
	defaults := DefaultConfig()
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = defaults.QueueBuffer
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}
	queueConfig := memory.DefaultConfig()
	queueConfig.QueueBuffer = config.QueueBuffer
	queueConfig.MaxRetries = config.MaxRetries
	queueConfig.RetryDelay = config.RetryDelay

	ret := &Service{
		sinks:        sinks,
		queue:        memory.NewQueue[delivery](queueConfig),
		logger:       slog.Default(),
		maxRetries:   config.MaxRetries,
		drainTimeout: config.DrainTimeout,
	}
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		ret.limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Send enqueues n. It fails when the queue is full or the service is closed.
func (s *Service) Send(ctx context.Context, n *Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return memory.ErrClosed
	}
	s.pending++
	s.mu.Unlock()
	err := s.queue.Publish(ctx, &delivery{notification: *n, delivered: make([]bool, len(s.sinks))})
	if err != nil {
		s.settle()
	}
	return err
}

// settle marks one notification delivered or given up.
func (s *Service) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}

// Start launches the delivery worker. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

func (s *Service) run(ctx context.Context) {
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			return
		}
		d := msg.T()
		if err = s.deliver(ctx, d); err != nil {
			s.logger.Warn("notification delivery failed", "title", d.notification.Title, "attempt", msg.Attempts(), "error", err)
			final := msg.Attempts() > s.maxRetries
			_ = msg.Nack(err)
			if final {
				s.settle()
			}
			continue
		}
		_ = msg.Ack()
		s.settle()
	}
}

func (s *Service) deliver(ctx context.Context, d *delivery) error {
	var errs []error
	for i, sink := range s.sinks {
		if d.delivered[i] {
			continue
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := sink.Deliver(ctx, &d.notification); err != nil {
			errs = append(errs, err)
			continue
		}
		d.delivered[i] = true
	}
	return errors.Join(errs...)
}

// Close stops accepting notifications, waits up to DrainTimeout for the
// queued ones (retries included) to be delivered or dead-lettered, then
// stops the worker.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	cancel := s.cancel
	var drained chan struct{}
	if cancel != nil && s.pending > 0 {
		if s.drained == nil {
			s.drained = make(chan struct{})
		}
		drained = s.drained
	}
	s.mu.Unlock()

	if drained != nil {
		timer := time.NewTimer(s.drainTimeout)
		select {
		case <-drained:
		case <-timer.C:
			s.logger.Warn("notifications dropped on close", "pending", s.Pending())
		}
		timer.Stop()
	}
	s.queue.Close()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Pending returns notifications accepted but not yet delivered or given up.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Failed returns notifications that exhausted their retries.
func (s *Service) Failed() []Notification {
	dead := s.queue.DeadLetters()
	ret := make([]Notification, 0, len(dead))
	for _, d := range dead {
		ret = append(ret, d.notification)
	}
	return ret
}

var _ Notifier = (*Service)(nil)
