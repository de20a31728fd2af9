package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/service/dao"
)

// Service is a Registry persisted through a snapshot store.
type Service struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	store      dao.Snapshot[string, Strategy]
	clock      clock.Clock
	logger     *slog.Logger
}

// Option customises Service.
type Option func(*Service)

// WithStore sets the strategy store.
func WithStore(store dao.Snapshot[string, Strategy]) Option {
	return func(s *Service) { s.store = store }
}

// WithClock substitutes the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
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

// New creates a registry, loading persisted strategies.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	ret := &Service{
		strategies: make(map[string]*Strategy),
		clock:      clock.System,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.store == nil {
		return ret, nil
	}
	loaded, err := ret.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load strategies: %w", err)
	}
	for id, s := range loaded {
		if s != nil && id != "" {
			ret.strategies[id] = s
		}
	}
	return ret, nil
}

// Register adds strategy unless one with the same id exists. It reports
// whether the strategy was added.
func (s *Service) Register(ctx context.Context, strategy *Strategy) (bool, error) {
	if strategy == nil {
		return false, dao.ErrNilEntity
	}
	if strings.TrimSpace(strategy.ID) == "" {
		return false, dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.strategies[strategy.ID]; ok {
		return false, nil
	}
	s.strategies[strategy.ID] = strategy.Clone()
	return true, s.persist(ctx)
}

// Lookup returns a copy of strategy id.
func (s *Service) Lookup(_ context.Context, id string) (*Strategy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	strategy, ok := s.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy %s: %w", id, dao.ErrNotFound)
	}
	return strategy.Clone(), nil
}

// List returns every strategy ordered by priority, then id.
func (s *Service) List(_ context.Context) []*Strategy {
	return s.filter(func(*Strategy) bool { return true })
}

// ActiveStrategies returns active strategies ordered by priority, then id.
func (s *Service) ActiveStrategies(_ context.Context) ([]*Strategy, error) {
	return s.filter(func(st *Strategy) bool { return st.Active }), nil
}

func (s *Service) filter(keep func(*Strategy) bool) []*Strategy {
	s.mu.RLock()
	result := make([]*Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if keep(st) {
			result = append(result, st.Clone())
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(result, func(a, b *Strategy) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result
}

// RecordExecution accumulates execution into strategy id.
func (s *Service) RecordExecution(ctx context.Context, id string, execution *Execution) error {
	if execution == nil {
		return dao.ErrNilEntity
	}
	return s.update(ctx, id, func(st *Strategy) {
		now := s.clock.Now()
		st.Executions++
		if !execution.Success {
			st.Failures++
		}
		st.TotalRevenue += execution.Revenue
		st.TotalCost += execution.Cost
		st.LastExecutedAt = &now
	})
}

// DeactivateStrategy clears the active flag and records why.
func (s *Service) DeactivateStrategy(ctx context.Context, id, reason string) error {
	err := s.update(ctx, id, func(st *Strategy) {
		now := s.clock.Now()
		st.Active = false
		st.DeactivatedReason = reason
		st.DeactivatedAt = &now
	})
	if err == nil {
		s.logger.Info("strategy deactivated", "strategy", id, "reason", reason)
	}
	return err
}

// ActivateStrategy re-enables strategy id.
func (s *Service) ActivateStrategy(ctx context.Context, id string) error {
	err := s.update(ctx, id, func(st *Strategy) {
		st.Active = true
		st.DeactivatedReason = ""
		st.DeactivatedAt = nil
	})
	if err == nil {
		s.logger.Info("strategy activated", "strategy", id)
	}
	return err
}

func (s *Service) update(ctx context.Context, id string, fn func(*Strategy)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	strategy, ok := s.strategies[id]
	if !ok {
		return fmt.Errorf("strategy %s: %w", id, dao.ErrNotFound)
	}
	fn(strategy)
	return s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveAll(ctx, s.strategies); err != nil {
		return fmt.Errorf("failed to persist strategies: %w", err)
	}
	return nil
}

var _ Registry = (*Service)(nil)
