package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shohag/hookrelay/internal/signing"
)

const maxResponseBody = 64 * 1024

// Attempt is the outcome of exactly one HTTP delivery attempt. Transport
// errors and non-2xx responses are data here, never Go errors: the retry
// scheduler decides what to do with them.
type Attempt struct {
	StatusCode int
	Body       string
	Err        string
}

func (a *Attempt) OK() bool {
	return a.Err == "" && a.StatusCode >= 200 && a.StatusCode < 300
}

// ErrorMessage describes why the attempt failed, for records and logs.
func (a *Attempt) ErrorMessage() string {
	if a.Err != "" {
		return a.Err
	}
	return fmt.Sprintf("endpoint returned status %d", a.StatusCode)
}

// Sender performs single delivery attempts. The per-attempt timeout comes
// from the dispatch options, so the client itself carries none.
type Sender struct {
	client *http.Client
	signer *signing.Signer
}

func NewSender(signer *signing.Signer) *Sender {
	return &Sender{
		client: &http.Client{},
		signer: signer,
	}
}

// Attempt builds the wire envelope, signs it when a secret is configured,
// and performs one HTTP call. opts must already be normalized.
func (s *Sender) Attempt(ctx context.Context, event string, payload map[string]any, url string, opts Options, key string) *Attempt {
	wire := map[string]any{
		"event":           event,
		"timestamp":       time.Now().Unix(),
		"data":            payload,
		"idempotency_key": key,
	}

	body, err := signing.CanonicalJSON(wire)
	if err != nil {
		return &Attempt{Err: fmt.Sprintf("failed to encode payload: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, bytes.NewReader(body))
	if err != nil {
		return &Attempt{Err: fmt.Sprintf("failed to create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "hookrelay/1.0")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set("X-Webhook-Idempotency-Key", key)

	if opts.Secret != "" {
		sig, err := s.signer.Sign(wire, opts.Secret)
		if err != nil {
			return &Attempt{Err: fmt.Sprintf("failed to sign payload: %v", err)}
		}
		req.Header.Set("X-Webhook-Signature", sig)
		req.Header.Set("X-Webhook-Signature-Algorithm", string(s.signer.Algorithm()))
	}

	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &Attempt{Err: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return &Attempt{
		StatusCode: resp.StatusCode,
		Body:       string(b),
	}
}
