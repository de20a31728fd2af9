package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viant/vigil/internal/clock"
	"github.com/viant/vigil/internal/idgen"
	"github.com/viant/vigil/risk"
	"github.com/viant/vigil/service/dao"
	"github.com/viant/vigil/service/notify"
)

// DefaultTimeout is the request deadline used when neither the Spec nor the
// gate configures one.
const DefaultTimeout = time.Hour

// Service is the approval gate. It is safe for concurrent use; every
// mutation is persisted through the store before the call returns.
type Service struct {
	mu             sync.Mutex
	requests       map[string]*Request
	changed        chan struct{}
	store          dao.Snapshot[string, Request]
	policy         *risk.Policy
	notifier       notify.Notifier
	clock          clock.Clock
	newID          idgen.Func
	logger         *slog.Logger
	defaultTimeout time.Duration
}

// New creates a gate and loads persisted requests. A store that cannot be
// read is logged and the gate starts empty.
func New(ctx context.Context, opts ...Option) *Service {
	ret := &Service{
		requests:       make(map[string]*Request),
		changed:        make(chan struct{}),
		policy:         risk.DefaultPolicy(),
		clock:          clock.System,
		newID:          idgen.New,
		logger:         slog.Default(),
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.store != nil {
		requests, err := ret.store.Load(ctx)
		switch {
		case err != nil:
			ret.logger.Warn("approval requests not loaded, starting empty", "error", err)
		default:
			for id, r := range requests {
				if r == nil || id == "" {
					continue
				}
				ret.requests[id] = r
			}
		}
	}
	return ret
}

// Policy returns the risk policy in use.
func (s *Service) Policy() *risk.Policy { return s.policy }

// RequestApproval gates spec. It returns proceed=true, with no request, when
// the policy auto-approves the risk level; otherwise it creates a pending
// request and the caller must wait for a decision.
func (s *Service) RequestApproval(ctx context.Context, spec *Spec) (*Request, bool, error) {
	if spec == nil {
		return nil, false, errors.New("approval spec was nil")
	}
	if !spec.RiskLevel.Valid() {
		return nil, false, fmt.Errorf("invalid risk level: %v", spec.RiskLevel)
	}
	if strings.TrimSpace(spec.Title) == "" {
		return nil, false, errors.New("approval title was empty")
	}
	if s.policy.AutoApproves(spec.RiskLevel) {
		s.logger.Info("auto-approved", "type", spec.Type, "title", spec.Title, "riskLevel", spec.RiskLevel.String())
		return nil, true, nil
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	now := s.clock.Now()
	request := &Request{
		ID:                s.newID(),
		Type:              spec.Type,
		Title:             spec.Title,
		Description:       spec.Description,
		RiskLevel:         spec.RiskLevel,
		RequiredApprovals: s.policy.RequiredApprovals(spec.RiskLevel),
		Approvals:         []string{},
		Rejections:        []string{},
		CreatedAt:         now,
		ExpiresAt:         now.Add(timeout),
		Status:            StatusPending,
	}
	if len(spec.Metadata) > 0 {
		request.Metadata = make(map[string]interface{}, len(spec.Metadata))
		for k, v := range spec.Metadata {
			request.Metadata[k] = v
		}
	}

	s.mu.Lock()
	s.requests[request.ID] = request
	s.commit(ctx)
	ret := request.Clone()
	s.mu.Unlock()

	s.logger.Info("approval requested", "id", ret.ID, "title", ret.Title, "riskLevel", ret.RiskLevel.String(), "requiredApprovals", ret.RequiredApprovals)
	severity := notify.SeverityWarning
	if s.policy.Severity(ret.RiskLevel) == risk.SeverityCritical {
		severity = notify.SeverityCritical
	}
	notify.Send(ctx, s.notifier, severity, "Approval required: "+ret.Title, ret.Description,
		notify.Field{Name: "Request", Value: ret.ID},
		notify.Field{Name: "Risk", Value: ret.RiskLevel.String(), Inline: true},
		notify.Field{Name: "Approvals needed", Value: strconv.Itoa(ret.RequiredApprovals), Inline: true},
		notify.Field{Name: "Expires", Value: ret.ExpiresAt.UTC().Format(time.RFC3339), Inline: true},
	)
	return ret, false, nil
}

// Approve records an approval. It returns false, changing nothing, for an
// unknown or decided request, an empty identity or an identity that already
// approved. A pending request past its deadline is expired instead.
func (s *Service) Approve(ctx context.Context, id, approver string) bool {
	approver = strings.TrimSpace(approver)
	s.mu.Lock()
	request, ok := s.decidable(ctx, id)
	if !ok || approver == "" || request.HasApproved(approver) {
		s.mu.Unlock()
		return false
	}
	request.Approvals = append(request.Approvals, approver)
	approved := len(request.Approvals) >= request.RequiredApprovals
	if approved {
		request.Status = StatusApproved
	}
	s.commit(ctx)
	snapshot := request.Clone()
	s.mu.Unlock()

	s.logger.Info("approval recorded", "id", id, "approver", approver, "approvals", len(snapshot.Approvals), "required", snapshot.RequiredApprovals)
	if approved {
		notify.Success(ctx, s.notifier, "Approved: "+snapshot.Title, snapshot.Description,
			notify.Field{Name: "Request", Value: snapshot.ID},
			notify.Field{Name: "Approvers", Value: strings.Join(snapshot.Approvals, ", ")},
		)
	}
	return true
}

// Reject vetoes a pending request regardless of approvals so far. Guards
// match Approve.
func (s *Service) Reject(ctx context.Context, id, rejector, reason string) bool {
	rejector = strings.TrimSpace(rejector)
	s.mu.Lock()
	request, ok := s.decidable(ctx, id)
	if !ok || rejector == "" {
		s.mu.Unlock()
		return false
	}
	request.Rejections = append(request.Rejections, rejector)
	request.Status = StatusRejected
	s.commit(ctx)
	snapshot := request.Clone()
	s.mu.Unlock()

	s.logger.Info("approval rejected", "id", id, "rejector", rejector, "reason", reason)
	if reason == "" {
		reason = "no reason given"
	}
	notify.Error(ctx, s.notifier, "Rejected: "+snapshot.Title, reason,
		notify.Field{Name: "Request", Value: snapshot.ID},
		notify.Field{Name: "Rejected by", Value: rejector},
	)
	return true
}

// decidable returns the pending request for id, expiring it when overdue.
// The caller holds s.mu.
func (s *Service) decidable(ctx context.Context, id string) (*Request, bool) {
	request, ok := s.requests[id]
	if !ok || request.Status != StatusPending {
		return nil, false
	}
	if request.Overdue(s.clock.Now()) {
		s.expire(request)
		s.commit(ctx)
		return nil, false
	}
	return request, true
}

func (s *Service) expire(request *Request) {
	request.Status = StatusExpired
	s.logger.Info("approval expired", "id", request.ID, "title", request.Title)
}

// PendingRequests returns pending requests that are not yet overdue, oldest
// first.
func (s *Service) PendingRequests(_ context.Context) []*Request {
	now := s.clock.Now()
	s.mu.Lock()
	var result []*Request
	for _, r := range s.requests {
		if r.Status == StatusPending && !r.Overdue(now) {
			result = append(result, r.Clone())
		}
	}
	s.mu.Unlock()
	sortRequests(result)
	return result
}

// CleanupExpired expires every overdue pending request, persists once and
// returns how many changed.
func (s *Service) CleanupExpired(ctx context.Context) int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.requests {
		if r.Overdue(now) {
			s.expire(r)
			count++
		}
	}
	if count > 0 {
		s.commit(ctx)
	}
	return count
}

// Lookup returns a copy of the request with id as stored.
func (s *Service) Lookup(_ context.Context, id string) (*Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// List returns copies of all requests, oldest first.
func (s *Service) List(_ context.Context) []*Request {
	s.mu.Lock()
	result := make([]*Request, 0, len(s.requests))
	for _, r := range s.requests {
		result = append(result, r.Clone())
	}
	s.mu.Unlock()
	sortRequests(result)
	return result
}

// commit persists all requests and wakes waiters. The caller holds s.mu.
// A store failure is logged; memory stays authoritative. The write outlives
// a cancelled caller, since the decision is already acknowledged in memory.
func (s *Service) commit(ctx context.Context) {
	if s.store != nil {
		if err := s.store.SaveAll(context.WithoutCancel(ctx), s.requests); err != nil {
			s.logger.Warn("approval requests not persisted", "error", err)
		}
	}
	close(s.changed)
	s.changed = make(chan struct{})
}

func sortRequests(requests []*Request) {
	slices.SortFunc(requests, func(a, b *Request) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
