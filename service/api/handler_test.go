package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/vigil/internal/idgen"
	"github.com/viant/vigil/risk"
	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/runner"
	"github.com/viant/vigil/service/strategy"
)

type fixedExecutor struct{}

func (fixedExecutor) Name() string             { return "fixed" }
func (fixedExecutor) SupportedTypes() []string { return []string{"fixed"} }
func (fixedExecutor) Execute(context.Context, *strategy.Strategy) (*runner.Result, error) {
	return &runner.Result{Success: true, Revenue: 7}, nil
}

type fixture struct {
	server   *httptest.Server
	gate     *approval.Service
	registry *strategy.Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	gate := approval.New(ctx, approval.WithIDGenerator(idgen.Sequence("req")))
	registry, err := strategy.New(ctx)
	require.NoError(t, err)
	_, err = registry.Register(ctx, &strategy.Strategy{ID: "s1", Type: "fixed", Active: true})
	require.NoError(t, err)
	run := runner.New(runner.WithRegistry(registry), runner.WithExecutors(fixedExecutor{}))

	opts = append([]Option{WithGate(gate), WithStrategies(registry), WithRunner(run)}, opts...)
	server := httptest.NewServer(New(opts...))
	t.Cleanup(server.Close)
	return &fixture{server: server, gate: gate, registry: registry}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	if m, ok := payload.(map[string]any); ok {
		return resp.StatusCode, m
	}
	return resp.StatusCode, map[string]any{"items": payload}
}

func TestHandler_Approvals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, _, err := f.gate.RequestApproval(ctx, &approval.Spec{Title: "wire funds", RiskLevel: risk.Critical})
	require.NoError(t, err)

	status, body := f.do(t, http.MethodGet, "/v1/approvals", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, body = f.do(t, http.MethodGet, "/v1/approvals/"+r.ID, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "critical", body["riskLevel"])
	assert.EqualValues(t, 2, body["requiredApprovals"])

	type testCase struct {
		name     string
		path     string
		body     string
		status   int
		accepted any
	}
	tests := []testCase{
		{name: "first approval", path: "/approve", body: `{"approver":"alice"}`, status: http.StatusOK, accepted: true},
		{name: "repeat approver", path: "/approve", body: `{"approver":"alice"}`, status: http.StatusOK, accepted: false},
		{name: "missing approver", path: "/approve", body: `{}`, status: http.StatusBadRequest},
		{name: "bad json", path: "/approve", body: `{`, status: http.StatusBadRequest},
		{name: "blank approver", path: "/approve", body: `{"approver":"   "}`, status: http.StatusBadRequest},
		{name: "blank rejector", path: "/reject", body: `{"rejector":"\t "}`, status: http.StatusBadRequest},
		{name: "veto", path: "/reject", body: `{"rejector":"bob","reason":"too risky"}`, status: http.StatusOK, accepted: true},
		{name: "already decided", path: "/approve", body: `{"approver":"carol"}`, status: http.StatusOK, accepted: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/v1/approvals/"+r.ID+tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			if tc.accepted != nil {
				assert.Equal(t, tc.accepted, body["accepted"])
			}
		})
	}

	status, body = f.do(t, http.MethodPost, "/v1/approvals/unknown/approve", `{"approver":"alice"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["accepted"])

	status, _ = f.do(t, http.MethodGet, "/v1/approvals/unknown", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodPost, "/v1/approvals/sweep", "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["expired"])

	got, _ := f.gate.Lookup(ctx, r.ID)
	assert.Equal(t, approval.StatusRejected, got.Status)
}

func TestHandler_Strategies(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/v1/strategies/s1/run", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 7, body["revenue"])

	status, _ = f.do(t, http.MethodPost, "/v1/strategies/s1/deactivate", `{"reason":"maintenance"}`)
	assert.Equal(t, http.StatusOK, status)
	s, err := f.registry.Lookup(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "maintenance", s.DeactivatedReason)

	status, _ = f.do(t, http.MethodPost, "/v1/strategies/s1/run", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodPost, "/v1/runs", "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["total"])

	status, _ = f.do(t, http.MethodPost, "/v1/strategies/s1/activate", "")
	assert.Equal(t, http.StatusOK, status)
	status, body = f.do(t, http.MethodPost, "/v1/runs", "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["succeeded"])

	status, body = f.do(t, http.MethodGet, "/v1/strategies", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)

	status, _ = f.do(t, http.MethodPost, "/v1/strategies/missing/activate", "")
	assert.Equal(t, http.StatusNotFound, status)
}

type failingStrategies struct{}

func (failingStrategies) List(context.Context) []*strategy.Strategy { return nil }
func (failingStrategies) ActivateStrategy(context.Context, string) error {
	return errors.New("store down")
}
func (failingStrategies) DeactivateStrategy(context.Context, string, string) error {
	return errors.New("store down")
}

func TestHandler_StoreErrors(t *testing.T) {
	server := httptest.NewServer(New(WithStrategies(failingStrategies{})))
	defer server.Close()
	resp, err := http.Post(server.URL+"/v1/strategies/s1/activate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(server.URL + "/v1/approvals")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "gate routes are not mounted")
}

func TestHandler_RateLimit(t *testing.T) {
	f := newFixture(t, WithRateLimit(0.001, 2))
	for i := 0; i < 2; i++ {
		status, _ := f.do(t, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, status)
	}
	status, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate limit exceeded", body["error"])
}
