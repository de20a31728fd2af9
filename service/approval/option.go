package approval

import (
	"log/slog"
	"time"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/internal/idgen"
	"github.com/viant/vigil/risk"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/notify"
)

// Option customises Service.
type Option func(*Service)

// WithStore sets the request store. Without it requests live in memory only.
func WithStore(store dao.Snapshot[string, Request]) Option {
	return func(s *Service) { s.store = store }
}

// WithPolicy sets the risk policy.
func WithPolicy(policy *risk.Policy) Option {
	return func(s *Service) {
		if policy != nil {
			s.policy = policy
		}
	}
}

// WithNotifier sets the notifier for new requests and decisions.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithClock substitutes the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the request id generator.
func WithIDGenerator(fn idgen.Func) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDefaultTimeout sets the deadline applied when a Spec has none.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.defaultTimeout = timeout
		}
	}
}
