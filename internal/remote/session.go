// Package remote implements the remote session manager (C8): a persistent,
// rate-limited connection to the official Linear MCP endpoint used for
// writes and for reads the local cache cannot answer.
package remote

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jra3/linear-reader/internal/applog"
	"github.com/jra3/linear-reader/internal/errs"
	"github.com/jra3/linear-reader/internal/record"
	"golang.org/x/time/rate"
)

// defaultConnectTimeout and defaultCallTimeout bound the connect phase and a
// single Invoke round-trip when NewSessionManager is used without explicit
// configuration (e.g. in tests that construct a SessionManager directly).
const (
	defaultConnectTimeout = 30 * time.Second
	defaultCallTimeout    = 30 * time.Second
)

// Result is the normalized shape returned by CallTool, mirroring
// spec.md §4.8's normalization taxonomy.
type Result struct {
	StructuredContent json.RawMessage
	Text              string
	// Value is the fully decoded result: the parsed structuredContent, or
	// the joined text blocks parsed as JSON, or (if neither parses) the
	// plain joined text. Callers that need to hand a result back verbatim
	// should use this instead of StructuredContent/Text.
	Value any
}

// Health mirrors the "get_health" contract: connection state plus the
// last-failure bookkeeping needed to decide whether to keep trying.
type Health struct {
	URL             string
	Connected       bool
	FailureCount    int
	LastError       string
	LastConnectedAt time.Time
}

// toolResultEnvelope is the wire shape of a call_tool response, matching
// the official session's isError/structuredContent/content taxonomy.
type toolResultEnvelope struct {
	IsError           bool              `json:"isError"`
	StructuredContent json.RawMessage   `json:"structuredContent,omitempty"`
	Content           []toolContentItem `json:"content,omitempty"`
}

type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// listToolsEnvelope is the wire shape of a list_tools response.
type listToolsEnvelope struct {
	Tools []toolDescriptor `json:"tools"`
}

type toolDescriptor struct {
	Name string `json:"name"`
}

// SessionManager owns one Transport connection and serializes calls to it.
// It does not need the Python reference's dedicated event-loop thread: Go
// callers can simply hold the mutex while a call is outstanding.
type SessionManager struct {
	url            string
	headers        map[string]string
	transport      Transport
	limiter        *rate.Limiter
	connectTimeout time.Duration
	callTimeout    time.Duration

	mu              sync.Mutex
	connected       bool
	failureCount    int
	lastError       string
	lastConnectedAt time.Time
	reconnectDelay  func() *backoff.ExponentialBackOff
}

// NewSessionManager constructs a SessionManager for url using transport,
// with the connect and per-call timeouts defaulted to 30s. Pass a
// *WebsocketTransport in production; tests substitute a fake.
func NewSessionManager(url string, headers map[string]string, transport Transport) *SessionManager {
	return NewSessionManagerWithTimeouts(url, headers, transport, defaultConnectTimeout, defaultCallTimeout)
}

// NewSessionManagerWithTimeouts is NewSessionManager with explicit
// connect/call timeouts, driven by spec.md §4.8's timeout_seconds and
// read_timeout_seconds configuration. callTimeout should already include
// the "+10s" margin over the configured read_timeout_seconds (spec.md §4.8:
// "a bounded result-wait timeout (read_timeout + 10s)").
func NewSessionManagerWithTimeouts(url string, headers map[string]string, transport Transport, connectTimeout, callTimeout time.Duration) *SessionManager {
	return &SessionManager{
		url:            url,
		headers:        headers,
		transport:      transport,
		limiter:        rate.NewLimiter(rate.Limit(2), 10),
		connectTimeout: connectTimeout,
		callTimeout:    callTimeout,
		reconnectDelay: func() *backoff.ExponentialBackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 10 * time.Millisecond
			b.MaxInterval = 50 * time.Millisecond
			return b
		},
	}
}

func (s *SessionManager) connectLocked(ctx context.Context) error {
	if s.connected {
		return nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := s.transport.Dial(dialCtx, s.url, s.headers); err != nil {
		s.lastError = err.Error()
		return err
	}
	s.connected = true
	s.lastConnectedAt = time.Now()
	return nil
}

func (s *SessionManager) disconnectLocked() {
	if !s.connected {
		return
	}
	_ = s.transport.Close()
	s.connected = false
}

// Connect dials the remote endpoint. CallTool dials lazily, so calling this
// explicitly is only needed to surface a dial failure early (e.g. from a
// "health" CLI command).
func (s *SessionManager) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(ctx)
}

// Close disconnects the session. Safe to call repeatedly.
func (s *SessionManager) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
	return nil
}

// Health reports the current connection state.
func (s *SessionManager) Health() Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Health{
		URL:             s.url,
		Connected:       s.connected,
		FailureCount:    s.failureCount,
		LastError:       s.lastError,
		LastConnectedAt: s.lastConnectedAt,
	}
}

// CallTool invokes name on the remote endpoint with args, mirroring the
// official session's two-attempt retry: a failed call forces a disconnect
// and one reconnect-then-retry; a second failure is surfaced as
// CodeOfficialUnavailable.
func (s *SessionManager) CallTool(ctx context.Context, name string, args record.Map) (*Result, error) {
	raw, err := s.invokeWithRetry(ctx, "call_tool "+name, "call_tool", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	return normalize(name, raw)
}

// ListTools returns the names of every tool the remote endpoint exposes,
// mirroring the official session's list_tools.
func (s *SessionManager) ListTools(ctx context.Context) ([]string, error) {
	raw, err := s.invokeWithRetry(ctx, "list_tools", "list_tools", nil)
	if err != nil {
		return nil, err
	}
	var env listToolsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.NewOfficialToolError(errs.CodeOfficialToolError, "decode list_tools response: "+err.Error())
	}
	names := make([]string, 0, len(env.Tools))
	for _, t := range env.Tools {
		if t.Name != "" {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// invokeWithRetry runs one RPC round-trip under the two-attempt retry used
// by every remote call: a failed attempt forces a disconnect and one
// reconnect-then-retry, and a second failure is surfaced as
// CodeOfficialUnavailable. logLabel is only used for diagnostics.
func (s *SessionManager) invokeWithRetry(ctx context.Context, logLabel, method string, params any) (json.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errs.NewOfficialToolError(errs.CodeOfficialUnavailable, "rate limiter: "+err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := s.connectLocked(ctx); err != nil {
			lastErr = err
			s.failureCount++
			s.lastError = err.Error()
			if attempt == 1 {
				time.Sleep(s.reconnectDelay().NextBackOff())
				continue
			}
			break
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		raw, err := s.transport.Invoke(callCtx, method, params)
		cancel()
		if err != nil {
			applog.Remote("%s attempt %d failed: %v", logLabel, attempt, err)
			lastErr = err
			s.failureCount++
			s.lastError = err.Error()
			s.disconnectLocked()
			if attempt == 1 {
				time.Sleep(s.reconnectDelay().NextBackOff())
				continue
			}
			break
		}

		s.failureCount = 0
		s.lastError = ""
		return raw, nil
	}

	msg := "remote call failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return nil, errs.NewOfficialToolError(errs.CodeOfficialUnavailable, msg)
}

// joinText concatenates every text content block with "\n", mirroring the
// official session's _extract_text helper.
func joinText(items []toolContentItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// normalize applies the isError -> structuredContent -> concatenated text
// taxonomy to a decoded call_tool response. On the success path it also
// attempts a JSON parse of whatever text it finds, so a caller that wants
// the decoded value back (rather than a raw string) gets it verbatim.
func normalize(name string, raw json.RawMessage) (*Result, error) {
	var env toolResultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &Result{Text: string(raw), Value: string(raw)}, nil
	}
	if env.IsError {
		msg := name + " failed"
		if text := joinText(env.Content); text != "" {
			msg = text
		}
		return nil, errs.NewOfficialToolError(errs.CodeOfficialToolError, msg)
	}
	if len(env.StructuredContent) > 0 {
		var parsed any
		if err := json.Unmarshal(env.StructuredContent, &parsed); err == nil {
			return &Result{StructuredContent: env.StructuredContent, Value: parsed}, nil
		}
		return &Result{StructuredContent: env.StructuredContent, Value: string(env.StructuredContent)}, nil
	}
	text := joinText(env.Content)
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &Result{Text: text, Value: parsed}, nil
	}
	return &Result{Text: text, Value: text}, nil
}
