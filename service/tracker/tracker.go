// Package tracker keeps per-strategy execution history and trips a circuit
// breaker after a run of consecutive failures. A tripped strategy stays
// deactivated until someone re-enables it.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/notify"
)

// DefaultThreshold is the number of consecutive failures that trips the
// breaker.
const DefaultThreshold = 3

// Outcome is the result of one strategy execution.
type Outcome struct {
	StrategyID string    `json:"strategyId"`
	Success    bool      `json:"success"`
	Revenue    float64   `json:"revenue"`
	Cost       float64   `json:"cost"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// History is the ordered outcomes of one strategy.
type History struct {
	StrategyID string     `json:"strategyId"`
	Outcomes   []*Outcome `json:"outcomes"`
}

// HistoryKey returns the store key of h.
func HistoryKey(h *History) string { return h.StrategyID }

// Deactivator disables a strategy.
type Deactivator interface {
	DeactivateStrategy(ctx context.Context, id, reason string) error
}

// Tracker records outcomes and decides when to trip.
type Tracker struct {
	mu          sync.Mutex
	histories   map[string]*History
	threshold   int
	store       dao.Snapshot[string, History]
	deactivator Deactivator
	notifier    notify.Notifier
	clock       clock.Clock
	logger      *slog.Logger
}

// Option customises Tracker.
type Option func(*Tracker)

// WithThreshold sets the consecutive failure count that trips the breaker.
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

// WithStore persists histories.
func WithStore(store dao.Snapshot[string, History]) Option {
	return func(t *Tracker) { t.store = store }
}

// WithDeactivator sets who disables a tripped strategy.
func WithDeactivator(d Deactivator) Option {
	return func(t *Tracker) { t.deactivator = d }
}

// WithNotifier sets the notifier for trips.
func WithNotifier(n notify.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithClock substitutes the wall clock used for missing timestamps.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a tracker and loads persisted histories. A history that cannot
// be read is logged and the tracker starts empty.
func New(ctx context.Context, opts ...Option) *Tracker {
	ret := &Tracker{
		histories: make(map[string]*History),
		threshold: DefaultThreshold,
		clock:     clock.System,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.store != nil {
		loaded, err := ret.store.Load(ctx)
		if err != nil {
			ret.logger.Warn("execution history not loaded, starting empty", "error", err)
		}
		for id, h := range loaded {
			if h != nil {
				ret.histories[id] = h
			}
		}
	}
	return ret
}

// Threshold returns the trip threshold.
func (t *Tracker) Threshold() int { return t.threshold }

// RecordOutcome appends outcome to the strategy history.
func (t *Tracker) RecordOutcome(ctx context.Context, strategyID string, outcome *Outcome) {
	if outcome == nil {
		return
	}
	recorded := *outcome
	recorded.StrategyID = strategyID
	if recorded.Timestamp.IsZero() {
		recorded.Timestamp = t.clock.Now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.histories[strategyID]
	if !ok {
		h = &History{StrategyID: strategyID}
		t.histories[strategyID] = h
	}
	h.Outcomes = append(h.Outcomes, &recorded)
	if t.store != nil {
		if err := t.store.SaveAll(ctx, t.histories); err != nil {
			t.logger.Warn("execution history not persisted", "strategy", strategyID, "error", err)
		}
	}
}

// ShouldTrip reports whether the last Threshold outcomes exist and all failed.
func (t *Tracker) ShouldTrip(strategyID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.histories[strategyID]
	if !ok || len(h.Outcomes) < t.threshold {
		return false
	}
	for _, o := range h.Outcomes[len(h.Outcomes)-t.threshold:] {
		if o.Success {
			return false
		}
	}
	return true
}

// Observe records outcome and, when the breaker trips, deactivates the
// strategy and sends a critical notification. It reports whether it tripped.
func (t *Tracker) Observe(ctx context.Context, strategyID string, outcome *Outcome) bool {
	t.RecordOutcome(ctx, strategyID, outcome)
	if !t.ShouldTrip(strategyID) {
		return false
	}
	reason := fmt.Sprintf("%d consecutive failures", t.threshold)
	if t.deactivator != nil {
		if err := t.deactivator.DeactivateStrategy(ctx, strategyID, reason); err != nil {
			t.logger.Warn("tripped strategy not deactivated", "strategy", strategyID, "error", err)
		}
	}
	t.logger.Info("circuit breaker tripped", "strategy", strategyID, "reason", reason)
	last := ""
	if outcome != nil {
		last = outcome.Error
	}
	notify.Critical(ctx, t.notifier, "Strategy paused: "+strategyID,
		"Automatically deactivated after "+reason+". Re-enable it manually once fixed.",
		notify.Field{Name: "Strategy", Value: strategyID, Inline: true},
		notify.Field{Name: "Failures", Value: strconv.Itoa(t.threshold), Inline: true},
		notify.Field{Name: "Last error", Value: last},
	)
	return true
}

// History returns a copy of the outcomes recorded for strategyID.
func (t *Tracker) History(strategyID string) []*Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.histories[strategyID]
	if !ok {
		return nil
	}
	result := make([]*Outcome, len(h.Outcomes))
	for i, o := range h.Outcomes {
		copied := *o
		result[i] = &copied
	}
	return result
}
