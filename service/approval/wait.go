package approval

import (
	"context"
	"sync"
	"time"

	"github.com/viant/vigil/tracing"
)

// DefaultPollInterval is used by WaitForApproval for non-positive intervals.
const DefaultPollInterval = time.Second

// WaitForApproval blocks until request id leaves pending and reports whether
// it was approved. The request is checked every poll interval and whenever
// the gate changes; an overdue request is expired. Unknown ids resolve false.
// Cancelling ctx abandons the wait with false and leaves the request as is.
func (s *Service) WaitForApproval(ctx context.Context, id string, poll time.Duration) bool {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ctx, span := tracing.StartWait(ctx, id)

	timer := time.NewTimer(poll)
	defer timer.Stop()
	for {
		status, changed, ok := s.poll(ctx, id)
		if !ok {
			span.End(nil)
			return false
		}
		if status.Terminal() {
			span.Decided(string(status))
			span.End(nil)
			return status == StatusApproved
		}
		select {
		case <-ctx.Done():
			span.End(ctx.Err())
			return false
		case <-changed:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		timer.Reset(poll)
	}
}

// poll returns the current status of id, expiring it when overdue, together
// with the channel closed on the next mutation.
func (s *Service) poll(ctx context.Context, id string) (Status, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[id]
	if !ok {
		return "", nil, false
	}
	if request.Overdue(s.clock.Now()) {
		s.expire(request)
		s.commit(ctx)
	}
	return request.Status, s.changed, true
}

// Guard requests approval for spec and, unless auto-approved, waits for the
// decision. It returns true only when the action may proceed.
func (s *Service) Guard(ctx context.Context, spec *Spec, poll time.Duration) bool {
	request, proceed, err := s.RequestApproval(ctx, spec)
	if err != nil {
		s.logger.Warn("approval request refused", "error", err)
		return false
	}
	if proceed {
		return true
	}
	return s.WaitForApproval(ctx, request.ID, poll)
}

// DecisionFunc decides a pending request: approve, or reject with reason.
type DecisionFunc func(r *Request) (approve bool, reason string)

// AutoDecider applies fn to every pending request each interval as identity.
// It returns stop; cancelling ctx also stops it.
func AutoDecider(ctx context.Context, gate *Service, identity string, fn DecisionFunc, interval time.Duration) (stop func()) {
	return ticker(ctx, interval, func() {
		for _, r := range gate.PendingRequests(ctx) {
			if ok, reason := fn(r); ok {
				gate.Approve(ctx, r.ID, identity)
			} else {
				gate.Reject(ctx, r.ID, identity, reason)
			}
		}
	})
}

// AutoSweep calls CleanupExpired every interval until stop is called or ctx
// is done.
func AutoSweep(ctx context.Context, gate *Service, interval time.Duration) (stop func()) {
	return ticker(ctx, interval, func() {
		if n := gate.CleanupExpired(ctx); n > 0 {
			gate.logger.Info("expired approval requests swept", "count", n)
		}
	})
}

func ticker(ctx context.Context, interval time.Duration, fn func()) func() {
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
