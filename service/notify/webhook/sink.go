// Package webhook delivers notifications as chat webhook embeds.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/viant/scy"
	"github.com/viant/vigil/service/notify"
)

// Colors per severity, as embed color integers.
var colors = map[notify.Severity]int{
	notify.SeverityInfo:     0x3498db,
	notify.SeveritySuccess:  0x2ecc71,
	notify.SeverityWarning:  0xf1c40f,
	notify.SeverityError:    0xe74c3c,
	notify.SeverityCritical: 0x8e0000,
}

// Secret locates an encrypted webhook URL.
type Secret struct {
	URL string `json:"url" yaml:"url"`
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

type (
	embedField struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline,omitempty"`
	}

	embed struct {
		Title       string       `json:"title"`
		Description string       `json:"description,omitempty"`
		Color       int          `json:"color"`
		Fields      []embedField `json:"fields,omitempty"`
		Timestamp   string       `json:"timestamp,omitempty"`
	}

	payload struct {
		Username string  `json:"username,omitempty"`
		Embeds   []embed `json:"embeds"`
	}
)

// Sink posts notifications to a webhook URL.
type Sink struct {
	url      string
	secret   *Secret
	username string
	client   *http.Client
	scy      *scy.Service
	once     sync.Once
	err      error
}

// Option customises Sink.
type Option func(*Sink)

// WithURL sets a plain webhook URL.
func WithURL(URL string) Option {
	return func(s *Sink) { s.url = URL }
}

// WithSecret resolves the webhook URL from a scy secret on first delivery.
func WithSecret(secret *Secret) Option {
	return func(s *Sink) { s.secret = secret }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

// WithUsername sets the displayed sender name.
func WithUsername(name string) Option {
	return func(s *Sink) { s.username = name }
}

// New creates a webhook sink.
func New(opts ...Option) *Sink {
	ret := &Sink{
		client:   &http.Client{Timeout: 10 * time.Second},
		username: "vigil",
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (s *Sink) endpoint(ctx context.Context) (string, error) {
	if s.secret == nil || s.secret.URL == "" {
		if s.url == "" {
			return "", fmt.Errorf("webhook url was empty")
		}
		return s.url, nil
	}
	s.once.Do(func() {
		if s.scy == nil {
			s.scy = scy.New()
		}
		secret, err := s.scy.Load(ctx, scy.NewResource(nil, s.secret.URL, s.secret.Key))
		if err != nil {
			s.err = fmt.Errorf("failed to load webhook secret from %s: %w", s.secret.URL, err)
			return
		}
		s.url = strings.TrimSpace(secret.String())
	})
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

// Deliver posts n as a single embed.
func (s *Sink) Deliver(ctx context.Context, n *notify.Notification) error {
	URL, err := s.endpoint(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(encode(s.username, n))
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func encode(username string, n *notify.Notification) *payload {
	e := embed{
		Title:       n.Title,
		Description: n.Description,
		Color:       colors[n.Severity],
	}
	if !n.CreatedAt.IsZero() {
		e.Timestamp = n.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, f := range n.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return &payload{Username: username, Embeds: []embed{e}}
}

var _ notify.Sink = (*Sink)(nil)
