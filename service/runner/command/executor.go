// Package command executes "command" strategies through a local or SSH shell,
// gating the step through the approval gate when a risk level is configured.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	goshrunner "github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"

	"github.com/viant/vigil/service/approval"
	"github.com/viant/vigil/service/runner"
	"github.com/viant/vigil/service/strategy"
)

// Shell runs commands in one session.
type Shell interface {
	Run(ctx context.Context, command string, options ...goshrunner.Option) (string, int, error)
	Close() error
}

// Dialer opens a shell session on host.
type Dialer func(ctx context.Context, host, credentials string, env map[string]string) (Shell, error)

// Executor runs strategy commands.
type Executor struct {
	gate     *approval.Service
	dial     Dialer
	logger   *slog.Logger
	mux      sync.Mutex
	sessions map[string]*session
}

// session serializes commands on one shell; gosh runners share a single pty.
type session struct {
	mux   sync.Mutex
	shell Shell
}

func (s *session) run(ctx context.Context, command string, options ...goshrunner.Option) (string, int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.shell.Run(ctx, command, options...)
}

// Option customises Executor.
type Option func(*Executor)

// WithGate gates commands that declare a risk level.
func WithGate(gate *approval.Service) Option {
	return func(e *Executor) { e.gate = gate }
}

// WithDialer replaces the gosh based session dialer.
func WithDialer(dial Dialer) Option {
	return func(e *Executor) {
		if dial != nil {
			e.dial = dial
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a command executor.
func New(opts ...Option) *Executor {
	ret := &Executor{
		dial:     Dial,
		logger:   slog.Default(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Name returns the executor name.
func (e *Executor) Name() string { return "command" }

// SupportedTypes returns the strategy types Executor runs.
func (e *Executor) SupportedTypes() []string { return []string{Type} }

// Execute runs the strategy command once.
func (e *Executor) Execute(ctx context.Context, s *strategy.Strategy) (*runner.Result, error) {
	settings, err := ParseSettings(s.Config)
	if err != nil {
		return nil, err
	}
	if settings.Gated {
		if e.gate == nil {
			return nil, fmt.Errorf("strategy %s requires approval but no gate is configured", s.ID)
		}
		title := settings.Title
		if title == "" {
			title = "Run " + s.ID
		}
		spec := &approval.Spec{
			Type:        Type,
			Title:       title,
			Description: settings.Command,
			RiskLevel:   settings.RiskLevel,
			Metadata:    map[string]interface{}{"strategyId": s.ID, "host": settings.Host},
		}
		if !e.gate.Guard(ctx, spec, settings.PollInterval) {
			return &runner.Result{Message: "not approved"}, fmt.Errorf("approval for strategy %s was not granted", s.ID)
		}
	}

	shell, err := e.session(ctx, s.ID, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	started := time.Now()
	stdout, status, err := shell.run(ctx, settings.Command, goshrunner.WithTimeout(int(settings.Timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > settings.Timeout && err == nil {
		err = fmt.Errorf("command timed out after: %s", elapsed)
	}
	revenue, cost := Metrics(stdout)
	result := &runner.Result{
		Success: err == nil && status == 0,
		Revenue: revenue,
		Cost:    cost,
		Message: lastLine(stdout),
	}
	if err != nil {
		return result, fmt.Errorf("command failed: %w", err)
	}
	if status != 0 {
		return result, fmt.Errorf("command exited with status %d: %s", status, lastLine(stdout))
	}
	return result, nil
}

// session returns the shell dedicated to strategyID. Changing the host,
// credentials or env of a strategy opens a new shell.
func (e *Executor) session(ctx context.Context, strategyID string, settings *Settings) (*session, error) {
	key := sessionKey(strategyID, settings)
	e.mux.Lock()
	defer e.mux.Unlock()
	if ret, ok := e.sessions[key]; ok {
		return ret, nil
	}
	shell, err := e.dial(ctx, settings.Host, settings.Credentials, settings.Env)
	if err != nil {
		return nil, err
	}
	ret := &session{shell: shell}
	e.sessions[key] = ret
	return ret, nil
}

func sessionKey(strategyID string, settings *Settings) string {
	names := make([]string, 0, len(settings.Env))
	for name := range settings.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString(strategyID)
	b.WriteString("|" + settings.Host + "|" + settings.Credentials)
	for _, name := range names {
		b.WriteString("|" + name + "=" + settings.Env[name])
	}
	return b.String()
}

// Close releases all sessions.
func (e *Executor) Close() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	var errs []string
	for key, session := range e.sessions {
		session.mux.Lock()
		err := session.shell.Close()
		session.mux.Unlock()
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to close session %s: %v", key, err))
		}
	}
	e.sessions = make(map[string]*session)
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Dial opens a gosh session: a local shell for localhost, SSH otherwise with
// credentials resolved through scy.
func Dial(ctx context.Context, host, credentials string, env map[string]string) (Shell, error) {
	var options []goshrunner.Option
	if len(env) > 0 {
		options = append(options, goshrunner.WithEnvironment(env))
	}
	if host == "" || host == localhost {
		return gosh.New(ctx, local.New(options...))
	}
	if credentials == "" {
		credentials = localhost
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to load ssh credentials %s: %w", credentials, err)
	}
	config, err := generic.SSH.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build ssh config: %w", err)
	}
	if !strings.Contains(host, ":") {
		host += ":22"
	}
	return gosh.New(ctx, rssh.New(host, config, options...))
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ runner.Executor = (*Executor)(nil)
