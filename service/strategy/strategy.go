// Package strategy holds the registry of business strategies the runner
// executes and the circuit breaker deactivates.
package strategy

import (
	"context"
	"time"
)

// Strategy is a unit of autonomous work.
type Strategy struct {
	ID       string                 `json:"id" yaml:"id"`
	Name     string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string                 `json:"type" yaml:"type"`
	Active   bool                   `json:"active" yaml:"active"`
	Priority int                    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Config   map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`

	TotalRevenue      float64    `json:"totalRevenue" yaml:"-"`
	TotalCost         float64    `json:"totalCost" yaml:"-"`
	Executions        int        `json:"executions" yaml:"-"`
	Failures          int        `json:"failures" yaml:"-"`
	LastExecutedAt    *time.Time `json:"lastExecutedAt,omitempty" yaml:"-"`
	DeactivatedReason string     `json:"deactivatedReason,omitempty" yaml:"-"`
	DeactivatedAt     *time.Time `json:"deactivatedAt,omitempty" yaml:"-"`
}

// Execution is the registry's view of one run.
type Execution struct {
	Success bool
	Revenue float64
	Cost    float64
}

// Registry is what the runner and the circuit breaker need.
type Registry interface {
	ActiveStrategies(ctx context.Context) ([]*Strategy, error)
	RecordExecution(ctx context.Context, id string, execution *Execution) error
	DeactivateStrategy(ctx context.Context, id, reason string) error
}

// Key returns the store key of s.
func Key(s *Strategy) string { return s.ID }

// Clone returns a copy of s; config values are shared.
func (s *Strategy) Clone() *Strategy {
	if s == nil {
		return nil
	}
	ret := *s
	if s.Config != nil {
		ret.Config = make(map[string]interface{}, len(s.Config))
		for k, v := range s.Config {
			ret.Config[k] = v
		}
	}
	if s.LastExecutedAt != nil {
		t := *s.LastExecutedAt
		ret.LastExecutedAt = &t
	}
	if s.DeactivatedAt != nil {
		t := *s.DeactivatedAt
		ret.DeactivatedAt = &t
	}
	return &ret
}
