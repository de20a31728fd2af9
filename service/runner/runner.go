// Package runner executes active strategies through type-matched executors
// and feeds every outcome to the circuit breaker. A failing strategy never
// stops the others.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/notify"
	"github.com/viant/vigil/service/strategy"
	"github.com/viant/vigil/service/tracker"
	"github.com/viant/vigil/tracing"
)

// Executor performs the work of one strategy type.
type Executor interface {
	Name() string
	SupportedTypes() []string
	Execute(ctx context.Context, s *strategy.Strategy) (*Result, error)
}

// Result is the outcome of one strategy run.
type Result struct {
	StrategyID string        `json:"strategyId"`
	Executor   string        `json:"executor,omitempty"`
	Success    bool          `json:"success"`
	Revenue    float64       `json:"revenue"`
	Cost       float64       `json:"cost"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	Tripped    bool          `json:"tripped,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// Summary aggregates a batch run.
type Summary struct {
	Results      []*Result `json:"results"`
	Total        int       `json:"total"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	Tripped      []string  `json:"tripped,omitempty"`
	TotalRevenue float64   `json:"totalRevenue"`
	TotalCost    float64   `json:"totalCost"`
}

func (s *Summary) add(r *Result) {
	s.Results = append(s.Results, r)
	s.Total++
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
	if r.Tripped {
		s.Tripped = append(s.Tripped, r.StrategyID)
	}
	s.TotalRevenue += r.Revenue
	s.TotalCost += r.Cost
}

// Runner runs strategies.
type Runner struct {
	executors []Executor
	registry  strategy.Registry
	tracker   *tracker.Tracker
	notifier  notify.Notifier
	clock     clock.Clock
	logger    *slog.Logger
}

// Option customises Runner.
type Option func(*Runner)

// WithExecutors appends executors; earlier ones win on type conflicts.
func WithExecutors(executors ...Executor) Option {
	return func(r *Runner) { r.executors = append(r.executors, executors...) }
}

// WithRegistry sets the strategy registry.
func WithRegistry(registry strategy.Registry) Option {
	return func(r *Runner) { r.registry = registry }
}

// WithTracker sets the execution tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithNotifier sets the notifier for run summaries.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithClock substitutes the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a runner.
func New(opts ...Option) *Runner {
	ret := &Runner{clock: clock.System, logger: slog.Default()}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Select returns the first executor supporting strategyType, or nil.
func (r *Runner) Select(strategyType string) Executor {
	for _, e := range r.executors {
		if slices.Contains(e.SupportedTypes(), strategyType) {
			return e
		}
	}
	return nil
}

// RunStrategy executes s and records the outcome. It always returns a
// result; executor errors and panics become failed results.
func (r *Runner) RunStrategy(ctx context.Context, s *strategy.Strategy) *Result {
	if s == nil {
		return &Result{Error: "strategy was nil", StartedAt: r.clock.Now()}
	}
	ctx, span := tracing.StartRun(ctx, s.ID, s.Type)

	started := r.clock.Now()
	result := r.execute(ctx, s)
	result.StrategyID = s.ID
	result.StartedAt = started
	result.Duration = r.clock.Now().Sub(started)
	r.logger.Info("strategy executed", "strategy", s.ID, "executor", result.Executor, "success", result.Success, "revenue", result.Revenue, "error", result.Error)

	if r.registry != nil {
		err := r.registry.RecordExecution(ctx, s.ID, &strategy.Execution{Success: result.Success, Revenue: result.Revenue, Cost: result.Cost})
		if err != nil {
			r.logger.Warn("execution not recorded", "strategy", s.ID, "error", err)
		}
	}
	if r.tracker != nil {
		result.Tripped = r.tracker.Observe(ctx, s.ID, &tracker.Outcome{
			Success:   result.Success,
			Revenue:   result.Revenue,
			Cost:      result.Cost,
			Timestamp: started,
			Error:     result.Error,
		})
	}

	span.Executed(result.Executor, result.Success, result.Revenue, result.Cost, result.Tripped)
	var spanErr error
	if !result.Success {
		spanErr = errors.New(result.Error)
	}
	span.End(spanErr)
	return result
}

func (r *Runner) execute(ctx context.Context, s *strategy.Strategy) (result *Result) {
	executor := r.Select(s.Type)
	if executor == nil {
		return &Result{Error: fmt.Sprintf("no executor supports strategy type %q", s.Type)}
	}
	name := executor.Name()
	defer func() {
		if p := recover(); p != nil {
			result = &Result{Executor: name, Error: fmt.Sprintf("executor panicked: %v", p)}
		}
	}()
	result, err := executor.Execute(ctx, s)
	if result == nil {
		result = &Result{}
		if err == nil {
			err = fmt.Errorf("executor %s returned no result", name)
		}
	}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
	}
	result.Executor = name
	return result
}

// RunAll runs every active strategy in order. Only a failure to list
// strategies is returned as an error.
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("runner has no strategy registry")
	}
	active, err := r.registry.ActiveStrategies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active strategies: %w", err)
	}
	summary := &Summary{Results: make([]*Result, 0, len(active))}
	for _, s := range active {
		summary.add(r.RunStrategy(ctx, s))
	}
	if summary.Total == 0 {
		r.logger.Info("no active strategies to run")
		return summary, nil
	}
	fields := []notify.Field{
		{Name: "Succeeded", Value: strconv.Itoa(summary.Succeeded), Inline: true},
		{Name: "Failed", Value: strconv.Itoa(summary.Failed), Inline: true},
		{Name: "Revenue", Value: strconv.FormatFloat(summary.TotalRevenue, 'f', 2, 64), Inline: true},
		{Name: "Cost", Value: strconv.FormatFloat(summary.TotalCost, 'f', 2, 64), Inline: true},
	}
	description := fmt.Sprintf("%d of %d strategies succeeded", summary.Succeeded, summary.Total)
	if summary.Failed == 0 {
		notify.Success(ctx, r.notifier, "Strategy run complete", description, fields...)
	} else {
		notify.Warning(ctx, r.notifier, "Strategy run finished with failures", description, fields...)
	}
	return summary, nil
}

// RunByID runs a single active strategy.
func (r *Runner) RunByID(ctx context.Context, id string) (*Result, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("runner has no strategy registry")
	}
	active, err := r.registry.ActiveStrategies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active strategies: %w", err)
	}
	for _, s := range active {
		if s.ID == id {
			return r.RunStrategy(ctx, s), nil
		}
	}
	return nil, fmt.Errorf("active strategy %s: %w", id, dao.ErrNotFound)
}
