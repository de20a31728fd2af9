package vigil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/vigil/internal/envexpr"
	"github.com/viant/vigil/risk"
	"github.com/viant/vigil/service/notify"
	"github.com/viant/vigil/service/notify/webhook"
	"github.com/viant/vigil/service/strategy"
	"github.com/viant/vigil/tracing"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StoreFS       = "fs"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the serialisable service configuration. The zero value of each
// nested section inherits the defaults from DefaultConfig.
type Config struct {
	Store      StoreConfig          `json:"store" yaml:"store"`
	Approval   ApprovalConfig       `json:"approval" yaml:"approval"`
	Breaker    BreakerConfig        `json:"breaker" yaml:"breaker"`
	Notifier   NotifierConfig       `json:"notifier" yaml:"notifier"`
	Runner     RunnerConfig         `json:"runner" yaml:"runner"`
	Server     ServerConfig         `json:"server" yaml:"server"`
	Tracing    tracing.Config       `json:"tracing" yaml:"tracing"`
	Strategies []*strategy.Strategy `json:"strategies,omitempty" yaml:"strategies,omitempty"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Kind string `json:"kind" yaml:"kind"`
	// BaseURL is the fs directory (any afs URL).
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	// DSN is the sqlite or postgres data source.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Addr, Password and DB address redis.
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	// Prefix is prepended to table names and redis keys.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ApprovalConfig configures the gate.
type ApprovalConfig struct {
	Policy         risk.Policy   `json:"policy" yaml:"policy"`
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty" yaml:"defaultTimeout,omitempty"`
	PollInterval   time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	SweepInterval  time.Duration `json:"sweepInterval,omitempty" yaml:"sweepInterval,omitempty"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `json:"failureThreshold" yaml:"failureThreshold"`
}

// NotifierConfig configures notification delivery.
type NotifierConfig struct {
	// Log also writes every notification to the logger.
	Log           bool            `json:"log,omitempty" yaml:"log,omitempty"`
	WebhookURL    string          `json:"webhookURL,omitempty" yaml:"webhookURL,omitempty"`
	WebhookSecret *webhook.Secret `json:"webhookSecret,omitempty" yaml:"webhookSecret,omitempty"`
	Username      string          `json:"username,omitempty" yaml:"username,omitempty"`
	Dispatch      notify.Config   `json:"dispatch" yaml:"dispatch"`
}

// RunnerConfig configures periodic runs in serve mode.
type RunnerConfig struct {
	// Interval between RunAll calls; zero disables periodic runs.
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string  `json:"addr" yaml:"addr"`
	RateLimit float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`
	Burst     int     `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Kind: StoreFS, BaseURL: ".vigil", Prefix: "vigil_"},
		Approval: ApprovalConfig{
			Policy:         *risk.DefaultPolicy(),
			DefaultTimeout: time.Hour,
			PollInterval:   5 * time.Second,
			SweepInterval:  time.Minute,
		},
		Breaker:  BreakerConfig{FailureThreshold: 3},
		Notifier: NotifierConfig{Log: true, Username: "vigil", Dispatch: notify.DefaultConfig()},
		Server:   ServerConfig{Addr: ":8080", RateLimit: 10, Burst: 20},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config was nil")
	}
	var errs []error
	switch c.Store.Kind {
	case StoreMemory:
	case StoreFS:
		if c.Store.BaseURL == "" {
			errs = append(errs, errors.New("store.baseURL is required for fs"))
		}
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for %s", c.Store.Kind))
		}
	case StoreRedis:
		if c.Store.Addr == "" {
			errs = append(errs, errors.New("store.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.kind: %q", c.Store.Kind))
	}
	if p := c.Approval.Policy; p.AutoApproveThreshold < risk.None || p.AutoApproveThreshold > risk.Critical {
		errs = append(errs, fmt.Errorf("approval.policy.autoApproveThreshold out of range: %v", p.AutoApproveThreshold))
	}
	if c.Approval.Policy.CriticalApprovals < 0 || c.Approval.Policy.DefaultApprovals < 0 {
		errs = append(errs, errors.New("approval.policy approvals must be >= 0"))
	}
	if c.Approval.DefaultTimeout < 0 {
		errs = append(errs, errors.New("approval.defaultTimeout must be >= 0"))
	}
	if c.Breaker.FailureThreshold <= 0 {
		errs = append(errs, errors.New("breaker.failureThreshold must be > 0"))
	}
	seen := map[string]bool{}
	for i, s := range c.Strategies {
		switch {
		case s == nil || s.ID == "":
			errs = append(errs, fmt.Errorf("strategies[%d].id is required", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Errorf("strategies[%d]: duplicate id %s", i, s.ID))
		default:
			seen[s.ID] = true
		}
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML (or JSON) config from any afs URL on top of
// DefaultConfig and validates it. ${env.NAME} references are expanded
// before decoding.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	data, err := afs.New().DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", URL, err)
	}
	cfg := DefaultConfig()
	if err = yaml.Unmarshal([]byte(envexpr.Expand(string(data), os.Getenv)), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", URL, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return cfg, nil
}
