package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"flowbit.dev/internal/obs"
)

// SecretHeader carries the shared secret on calls in both directions.
const SecretHeader = "X-Webhook-Secret"

const breakerName = "n8n"

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("workflow: engine unavailable")

// StatusError reports a non-2xx reply from the workflow engine.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow: engine returned %d: %s", e.Code, e.Body)
}

// TicketCreated is the payload of the ticket-created workflow.
type TicketCreated struct {
	CustomerID string `json:"customerId"`
	TicketID   string `json:"ticketId"`
	Priority   string `json:"priority"`
	Category   string `json:"category"`
	UserID     string `json:"userId"`
}

// Client posts webhook triggers to an n8n instance behind a circuit breaker.
type Client struct {
	baseURL     *url.URL
	secret      string
	http        *http.Client
	maxFailures uint32
	openTimeout time.Duration
	cb          *gobreaker.CircuitBreaker[struct{}]
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBreaker sets how many consecutive failures open the breaker and how
// long it stays open before probing again.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(c *Client) {
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
		if openTimeout > 0 {
			c.openTimeout = openTimeout
		}
	}
}

// New builds a client for the engine at baseURL.
func New(baseURL, secret string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("workflow: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("workflow: unsupported base url %q", baseURL)
	}
	c := &Client{
		baseURL:     u,
		secret:      secret,
		http:        &http.Client{Timeout: 10 * time.Second},
		maxFailures: 5,
		openTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	obs.BreakerState.WithLabelValues(breakerName).Set(0)
	c.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.maxFailures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			obs.Logger().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("workflow breaker state change")
			obs.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return c, nil
}

// State reports the breaker state as "closed", "half-open" or "open".
func (c *Client) State() string { return c.cb.State().String() }

// TicketCreated triggers the ticket-created workflow.
func (c *Client) TicketCreated(ctx context.Context, payload TicketCreated) error {
	return c.Trigger(ctx, "ticket-created", payload)
}

// Trigger posts payload to the named webhook workflow.
func (c *Client) Trigger(ctx context.Context, workflow string, payload any) error {
	_, err := c.cb.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, workflow, payload)
	})
	switch {
	case err == nil:
		obs.WorkflowRequests.WithLabelValues(workflow, "success").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		obs.WorkflowRequests.WithLabelValues(workflow, "rejected").Inc()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		obs.WorkflowRequests.WithLabelValues(workflow, "failure").Inc()
		return err
	}
}

func (c *Client) post(ctx context.Context, workflow string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("workflow: encode payload: %w", err)
	}
	endpoint := c.baseURL.JoinPath("webhook", workflow)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("workflow: %s: %w", workflow, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
