package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viant/vigil/service/approval"
)

// decider is the slice of the approval gate the CLI drives, either in
// process or through a running server.
type decider interface {
	Pending(ctx context.Context) ([]*approval.Request, error)
	Show(ctx context.Context, id string) (*approval.Request, error)
	Approve(ctx context.Context, id, approver string) (bool, error)
	Reject(ctx context.Context, id, rejector, reason string) (bool, error)
	Sweep(ctx context.Context) (int, error)
	Close() error
}

type localDecider struct {
	gate  *approval.Service
	close func() error
}

func (l *localDecider) Pending(ctx context.Context) ([]*approval.Request, error) {
	return l.gate.PendingRequests(ctx), nil
}

func (l *localDecider) Show(ctx context.Context, id string) (*approval.Request, error) {
	request, ok := l.gate.Lookup(ctx, id)
	if !ok {
		return nil, fmt.Errorf("approval request %q not found", id)
	}
	return request, nil
}

func (l *localDecider) Approve(ctx context.Context, id, approver string) (bool, error) {
	return l.gate.Approve(ctx, id, approver), nil
}

func (l *localDecider) Reject(ctx context.Context, id, rejector, reason string) (bool, error) {
	return l.gate.Reject(ctx, id, rejector, reason), nil
}

func (l *localDecider) Sweep(ctx context.Context) (int, error) {
	return l.gate.CleanupExpired(ctx), nil
}

func (l *localDecider) Close() error { return l.close() }

type remoteDecider struct {
	base   string
	client *http.Client
}

func newRemoteDecider(base string) *remoteDecider {
	return &remoteDecider{base: strings.TrimRight(base, "/"), client: &http.Client{Timeout: 30 * time.Second}}
}

func (r *remoteDecider) Pending(ctx context.Context) ([]*approval.Request, error) {
	var pending []*approval.Request
	err := r.do(ctx, http.MethodGet, "/v1/approvals", nil, &pending)
	return pending, err
}

func (r *remoteDecider) Show(ctx context.Context, id string) (*approval.Request, error) {
	request := &approval.Request{}
	if err := r.do(ctx, http.MethodGet, "/v1/approvals/"+url.PathEscape(id), nil, request); err != nil {
		return nil, err
	}
	return request, nil
}

type decision struct {
	Accepted bool `json:"accepted"`
}

func (r *remoteDecider) Approve(ctx context.Context, id, approver string) (bool, error) {
	var out decision
	err := r.do(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(id)+"/approve", map[string]string{"approver": approver}, &out)
	return out.Accepted, err
}

func (r *remoteDecider) Reject(ctx context.Context, id, rejector, reason string) (bool, error) {
	var out decision
	err := r.do(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(id)+"/reject", map[string]string{"rejector": rejector, "reason": reason}, &out)
	return out.Accepted, err
}

func (r *remoteDecider) Sweep(ctx context.Context) (int, error) {
	var out struct {
		Expired int `json:"expired"`
	}
	err := r.do(ctx, http.MethodPost, "/v1/approvals/sweep", nil, &out)
	return out.Expired, err
}

func (r *remoteDecider) Close() error { return nil }

func (r *remoteDecider) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
