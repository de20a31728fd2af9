package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goshrunner "github.com/viant/gosh/runner"

	"github.com/viant/vigil/risk"
	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/strategy"
)

type fakeShell struct {
	commands []string
	stdout   string
	status   int
	err      error
	closed   bool
}

func (f *fakeShell) Run(_ context.Context, command string, _ ...goshrunner.Option) (string, int, error) {
	f.commands = append(f.commands, command)
	return f.stdout, f.status, f.err
}

func (f *fakeShell) Close() error {
	f.closed = true
	return nil
}

func dialer(shell *fakeShell, dials *int) Dialer {
	return func(context.Context, string, string, map[string]string) (Shell, error) {
		*dials++
		return shell, nil
	}
}

func envDialer(envs *[]map[string]string) Dialer {
	var mux sync.Mutex
	return func(_ context.Context, _ string, _ string, env map[string]string) (Shell, error) {
		mux.Lock()
		defer mux.Unlock()
		*envs = append(*envs, env)
		return &fakeShell{}, nil
	}
}

// busyShell fails the test when two commands overlap.
type busyShell struct {
	active  int32
	overlap int32
	runs    int32
}

func (b *busyShell) Run(context.Context, string, ...goshrunner.Option) (string, int, error) {
	if atomic.AddInt32(&b.active, 1) > 1 {
		atomic.StoreInt32(&b.overlap, 1)
	}
	time.Sleep(2 * time.Millisecond)
	atomic.AddInt32(&b.active, -1)
	atomic.AddInt32(&b.runs, 1)
	return "ok", 0, nil
}

func (b *busyShell) Close() error { return nil }

func TestParseSettings(t *testing.T) {
	type testCase struct {
		name     string
		config   map[string]interface{}
		expected *Settings
		hasError bool
	}
	tests := []testCase{
		{
			name:   "defaults",
			config: map[string]interface{}{"command": "./publish.sh"},
			expected: &Settings{Command: "./publish.sh", Host: "localhost", Timeout: time.Minute, PollInterval: time.Second},
		},
		{
			name: "gated remote",
			config: map[string]interface{}{
				"command": "deploy", "host": "box:2222", "credentials": "ops", "riskLevel": "HIGH",
				"title": "Deploy", "timeoutMs": 500, "pollIntervalMs": "20", "env": map[string]interface{}{"MODE": "live", "N": 2},
			},
			expected: &Settings{
				Command: "deploy", Host: "box:2222", Credentials: "ops", RiskLevel: risk.High, Gated: true,
				Title: "Deploy", Timeout: 500 * time.Millisecond, PollInterval: 20 * time.Millisecond,
				Env: map[string]string{"MODE": "live", "N": "2"},
			},
		},
		{name: "missing command", config: map[string]interface{}{}, hasError: true},
		{name: "bad level", config: map[string]interface{}{"command": "x", "riskLevel": "extreme"}, hasError: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ParseSettings(tc.config)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, tc.expected, actual)
		})
	}
}

func TestMetrics(t *testing.T) {
	revenue, cost := Metrics("listing created\nrevenue=12.5\n cost = 3\nrevenue=14")
	assert.Equal(t, 14.0, revenue)
	assert.Equal(t, 3.0, cost)
	revenue, cost = Metrics("nothing here")
	assert.Zero(t, revenue)
	assert.Zero(t, cost)
}

func TestExecutor_Execute(t *testing.T) {
	ctx := context.Background()
	shell := &fakeShell{stdout: "revenue=20\ncost=4\ndone"}
	dials := 0
	executor := New(WithDialer(dialer(shell, &dials)))
	s := &strategy.Strategy{ID: "s1", Type: Type, Config: map[string]interface{}{"command": "./sell.sh"}}

	result, err := executor.Execute(ctx, s)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 20.0, result.Revenue)
	assert.Equal(t, 4.0, result.Cost)
	assert.Equal(t, "done", result.Message)

	_, err = executor.Execute(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, dials, "session is reused")
	assert.Equal(t, []string{"./sell.sh", "./sell.sh"}, shell.commands)

	shell.status, shell.stdout = 2, "quota exceeded"
	result, err = executor.Execute(ctx, s)
	assert.EqualError(t, err, "command exited with status 2: quota exceeded")
	assert.False(t, result.Success)

	shell.status, shell.err = 0, errors.New("broken pipe")
	_, err = executor.Execute(ctx, s)
	assert.ErrorContains(t, err, "broken pipe")

	require.NoError(t, executor.Close())
	assert.True(t, shell.closed)
	assert.Equal(t, "command", executor.Name())
	assert.Equal(t, []string{Type}, executor.SupportedTypes())
}

func TestExecutor_Gated(t *testing.T) {
	ctx := context.Background()
	config := map[string]interface{}{"command": "./buy-ads.sh", "riskLevel": "high", "title": "Buy ads", "pollIntervalMs": 5}
	s := &strategy.Strategy{ID: "ads", Type: Type, Config: config}

	t.Run("without gate", func(t *testing.T) {
		dials := 0
		_, err := New(WithDialer(dialer(&fakeShell{}, &dials))).Execute(ctx, s)
		assert.Error(t, err)
		assert.Zero(t, dials)
	})

	t.Run("rejected", func(t *testing.T) {
		gate := approval.New(ctx)
		stop := approval.AutoDecider(ctx, gate, "ops", func(*approval.Request) (bool, string) { return false, "no budget" }, 5*time.Millisecond)
		defer stop()
		shell := &fakeShell{}
		dials := 0
		result, err := New(WithGate(gate), WithDialer(dialer(shell, &dials))).Execute(ctx, s)
		assert.Error(t, err)
		assert.Equal(t, "not approved", result.Message)
		assert.Empty(t, shell.commands)
	})

	t.Run("approved", func(t *testing.T) {
		gate := approval.New(ctx)
		stop := approval.AutoDecider(ctx, gate, "ops", func(r *approval.Request) (bool, string) {
			return r.Title == "Buy ads" && r.Metadata["strategyId"] == "ads", ""
		}, 5*time.Millisecond)
		defer stop()
		shell := &fakeShell{stdout: "cost=50"}
		dials := 0
		result, err := New(WithGate(gate), WithDialer(dialer(shell, &dials))).Execute(ctx, s)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 50.0, result.Cost)
		assert.Equal(t, []string{"./buy-ads.sh"}, shell.commands)
		require.Len(t, gate.List(ctx), 1)
		assert.Equal(t, approval.StatusApproved, gate.List(ctx)[0].Status)
	})
}

func TestExecutor_SessionPerEnv(t *testing.T) {
	ctx := context.Background()
	var envs []map[string]string
	executor := New(WithDialer(envDialer(&envs)))
	sandbox := &strategy.Strategy{ID: "sandbox", Type: Type, Config: map[string]interface{}{"command": "./trade.sh", "env": map[string]interface{}{"MODE": "sandbox"}}}
	live := &strategy.Strategy{ID: "live", Type: Type, Config: map[string]interface{}{"command": "./trade.sh", "env": map[string]interface{}{"MODE": "live"}}}

	_, err := executor.Execute(ctx, sandbox)
	require.NoError(t, err)
	_, err = executor.Execute(ctx, live)
	require.NoError(t, err)
	_, err = executor.Execute(ctx, sandbox)
	require.NoError(t, err)

	require.Len(t, envs, 2)
	assert.Equal(t, map[string]string{"MODE": "sandbox"}, envs[0])
	assert.Equal(t, map[string]string{"MODE": "live"}, envs[1])

	live.Config["env"] = map[string]interface{}{"MODE": "paper"}
	_, err = executor.Execute(ctx, live)
	require.NoError(t, err)
	require.Len(t, envs, 3, "changed env opens a new session")
	assert.Equal(t, map[string]string{"MODE": "paper"}, envs[2])
}

func TestExecutor_SerializesSession(t *testing.T) {
	ctx := context.Background()
	shell := &busyShell{}
	executor := New(WithDialer(func(context.Context, string, string, map[string]string) (Shell, error) { return shell, nil }))
	s := &strategy.Strategy{ID: "s1", Type: Type, Config: map[string]interface{}{"command": "./sell.sh"}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := executor.Execute(ctx, s)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8, atomic.LoadInt32(&shell.runs))
	assert.Zero(t, atomic.LoadInt32(&shell.overlap), "commands interleaved on one session")
}
