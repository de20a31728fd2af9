package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/notify"
	"github.com/viant/vigil/service/strategy"
	"github.com/viant/vigil/service/tracker"
)

type stubExecutor struct {
	name  string
	types []string
	run   func(s *strategy.Strategy) (*Result, error)
}

func (e *stubExecutor) Name() string             { return e.name }
func (e *stubExecutor) SupportedTypes() []string { return e.types }
func (e *stubExecutor) Execute(_ context.Context, s *strategy.Strategy) (*Result, error) {
	return e.run(s)
}

func newRegistry(t *testing.T, strategies ...*strategy.Strategy) *strategy.Service {
	t.Helper()
	registry, err := strategy.New(context.Background())
	require.NoError(t, err)
	for _, s := range strategies {
		_, err = registry.Register(context.Background(), s)
		require.NoError(t, err)
	}
	return registry
}

func TestRunner_RunAllIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t,
		&strategy.Strategy{ID: "a", Type: "ok", Active: true, Priority: 1},
		&strategy.Strategy{ID: "b", Type: "broken", Active: true, Priority: 2},
		&strategy.Strategy{ID: "c", Type: "ok", Active: true, Priority: 3},
	)
	var sent []notify.Notification
	r := New(
		WithRegistry(registry),
		WithTracker(tracker.New(ctx)),
		WithNotifier(notify.NotifierFunc(func(_ context.Context, n *notify.Notification) error {
			sent = append(sent, *n)
			return nil
		})),
		WithExecutors(
			&stubExecutor{name: "good", types: []string{"ok"}, run: func(*strategy.Strategy) (*Result, error) {
				return &Result{Success: true, Revenue: 10, Cost: 1}, nil
			}},
			&stubExecutor{name: "bad", types: []string{"broken"}, run: func(*strategy.Strategy) (*Result, error) {
				return nil, errors.New("api unavailable")
			}},
		),
	)

	summary, err := r.RunAll(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 20.0, summary.TotalRevenue)
	assert.Equal(t, 2.0, summary.TotalCost)

	var ids []string
	for _, res := range summary.Results {
		ids = append(ids, res.StrategyID)
		assert.Equal(t, res.StrategyID != "b", res.Success)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "api unavailable", summary.Results[1].Error)
	assert.Equal(t, "bad", summary.Results[1].Executor)

	b, err := registry.Lookup(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Failures)
	require.Len(t, sent, 1)
	assert.Equal(t, notify.SeverityWarning, sent[0].Severity)
}

func TestRunner_RunStrategyFailures(t *testing.T) {
	type testCase struct {
		name     string
		strategy *strategy.Strategy
		errorMsg string
	}
	panicking := &stubExecutor{name: "panics", types: []string{"panic"}, run: func(*strategy.Strategy) (*Result, error) {
		panic("nil map")
	}}
	empty := &stubExecutor{name: "empty", types: []string{"empty"}, run: func(*strategy.Strategy) (*Result, error) {
		return nil, nil
	}}
	partial := &stubExecutor{name: "partial", types: []string{"partial"}, run: func(*strategy.Strategy) (*Result, error) {
		return &Result{Success: true, Cost: 3}, errors.New("refund failed")
	}}
	r := New(WithExecutors(panicking, empty, partial))

	tests := []testCase{
		{name: "panic", strategy: &strategy.Strategy{ID: "p", Type: "panic"}, errorMsg: "executor panicked: nil map"},
		{name: "nil result", strategy: &strategy.Strategy{ID: "e", Type: "empty"}, errorMsg: "executor empty returned no result"},
		{name: "error wins over success", strategy: &strategy.Strategy{ID: "x", Type: "partial"}, errorMsg: "refund failed"},
		{name: "no executor", strategy: &strategy.Strategy{ID: "n", Type: "unknown"}, errorMsg: `no executor supports strategy type "unknown"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := r.RunStrategy(context.Background(), tc.strategy)
			require.NotNil(t, result)
			assert.False(t, result.Success)
			assert.Equal(t, tc.errorMsg, result.Error)
			assert.Equal(t, tc.strategy.ID, result.StrategyID)
		})
	}
	assert.False(t, r.RunStrategy(context.Background(), nil).Success)
}

func TestRunner_SelectFirstMatch(t *testing.T) {
	first := &stubExecutor{name: "first", types: []string{"a", "b"}}
	second := &stubExecutor{name: "second", types: []string{"b", "c"}}
	r := New(WithExecutors(first, second))
	assert.Equal(t, "first", r.Select("b").Name())
	assert.Equal(t, "second", r.Select("c").Name())
	assert.Nil(t, r.Select("d"))
}

func TestRunner_TripsBreaker(t *testing.T) {
	ctx := context.Background()
	registry := newRegistry(t, &strategy.Strategy{ID: "flaky", Type: "broken", Active: true})
	r := New(
		WithRegistry(registry),
		WithTracker(tracker.New(ctx, tracker.WithDeactivator(registry))),
		WithExecutors(&stubExecutor{name: "bad", types: []string{"broken"}, run: func(*strategy.Strategy) (*Result, error) {
			return nil, errors.New("down")
		}}),
	)

	for i := 0; i < 2; i++ {
		summary, err := r.RunAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, summary.Tripped)
	}
	summary, err := r.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"flaky"}, summary.Tripped)

	summary, err = r.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)

	_, err = r.RunByID(ctx, "flaky")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	require.NoError(t, registry.ActivateStrategy(ctx, "flaky"))
	result, err := r.RunByID(ctx, "flaky")
	require.NoError(t, err)
	assert.True(t, result.Tripped)
}

func TestRunner_WithoutRegistry(t *testing.T) {
	_, err := New().RunAll(context.Background())
	assert.Error(t, err)
	_, err = New().RunByID(context.Background(), "a")
	assert.Error(t, err)
}
