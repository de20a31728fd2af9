package vigil

import (
	"log/slog"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/service/notify"
	"github.com/viant/vigil/service/runner"
	"github.com/viant/vigil/service/runner/command"
)

// Option customises Service.
type Option func(s *Service)

// WithExecutors registers executors ahead of the built-in command executor.
func WithExecutors(executors ...runner.Executor) Option {
	return func(s *Service) { s.executors = append(s.executors, executors...) }
}

// WithLogger sets the logger passed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStores replaces the stores built from config.
func WithStores(stores *Stores) Option {
	return func(s *Service) { s.stores = stores }
}

// WithNotifier replaces the notification dispatcher built from config.
func WithNotifier(notifier notify.Notifier) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithSinks adds delivery sinks to the dispatcher built from config.
func WithSinks(sinks ...notify.Sink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithClock substitutes the wall clock in every component.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithCommandOptions passes options to the built-in command executor.
func WithCommandOptions(opts ...command.Option) Option {
	return func(s *Service) { s.commandOptions = append(s.commandOptions, opts...) }
}
