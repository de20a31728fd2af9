package approval

import (
	"slices"
	"time"

	"github.com/viant/vigil/risk"
)

// Status of an approval request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// Request is a gated action awaiting a decision.
type Request struct {
	ID                string                 `json:"id"`
	Type              string                 `json:"type"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	RiskLevel         risk.Level             `json:"riskLevel"`
	RequiredApprovals int                    `json:"requiredApprovals"`
	Approvals         []string               `json:"approvals"`
	Rejections        []string               `json:"rejections"`
	CreatedAt         time.Time              `json:"createdAt"`
	ExpiresAt         time.Time              `json:"expiresAt"`
	Status            Status                 `json:"status"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// Overdue reports whether the request is still pending at or past its deadline.
func (r *Request) Overdue(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.ExpiresAt)
}

// HasApproved reports whether identity already approved r.
func (r *Request) HasApproved(identity string) bool {
	return slices.Contains(r.Approvals, identity)
}

// Clone returns a copy that shares nothing mutable with r, except metadata
// values.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	ret := *r
	ret.Approvals = slices.Clone(r.Approvals)
	ret.Rejections = slices.Clone(r.Rejections)
	if r.Metadata != nil {
		ret.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			ret.Metadata[k] = v
		}
	}
	return &ret
}

// Spec describes an action to gate.
type Spec struct {
	Type        string
	Title       string
	Description string
	RiskLevel   risk.Level
	// Timeout overrides the gate default when positive.
	Timeout  time.Duration
	Metadata map[string]interface{}
}

// Key returns the store key of r.
func Key(r *Request) string { return r.ID }
