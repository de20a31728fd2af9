package risk

// Severity is the notification severity a new request of a given level
// deserves.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Policy decides auto-approval and quorum size per level.
//
// A nil *Policy behaves like DefaultPolicy().
type Policy struct {
	// AutoApproveThreshold: levels at or below it proceed without a request.
	AutoApproveThreshold Level `json:"autoApproveThreshold" yaml:"autoApproveThreshold"`
	// CriticalApprovals is the quorum for Critical requests.
	CriticalApprovals int `json:"criticalApprovals,omitempty" yaml:"criticalApprovals,omitempty"`
	// DefaultApprovals is the quorum for every other level.
	DefaultApprovals int `json:"defaultApprovals,omitempty" yaml:"defaultApprovals,omitempty"`
}

// DefaultPolicy auto-approves Low, requires two approvals for Critical and
// one for everything else.
func DefaultPolicy() *Policy {
	return &Policy{
		AutoApproveThreshold: Low,
		CriticalApprovals:    2,
		DefaultApprovals:     1,
	}
}

func (p *Policy) orDefault() *Policy {
	if p == nil {
		return DefaultPolicy()
	}
	return p
}

// AutoApproves reports whether an action of the given level proceeds
// immediately.
func (p *Policy) AutoApproves(level Level) bool {
	return level <= p.orDefault().AutoApproveThreshold
}

// RequiredApprovals returns the quorum for level, never less than 1.
func (p *Policy) RequiredApprovals(level Level) int {
	p = p.orDefault()
	n := p.DefaultApprovals
	if level >= Critical {
		n = p.CriticalApprovals
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Severity returns the notification severity for a new request.
func (p *Policy) Severity(level Level) Severity {
	if level >= Critical {
		return SeverityCritical
	}
	return SeverityWarning
}
