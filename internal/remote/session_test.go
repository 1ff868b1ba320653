package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jra3/linear-reader/internal/errs"
)

type fakeTransport struct {
	dialErr    error
	invokeErr  error
	dialCount  int
	closeCount int
	response   json.RawMessage
}

func (f *fakeTransport) Dial(ctx context.Context, url string, headers map[string]string) error {
	f.dialCount++
	return f.dialErr
}

func (f *fakeTransport) Close() error {
	f.closeCount++
	return nil
}

func (f *fakeTransport) Invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.response, nil
}

func TestCallToolSuccessStructuredContent(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"structuredContent":{"foo":"bar"}}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	res, err := sm.CallTool(context.Background(), "list_issues", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.StructuredContent) != `{"foo":"bar"}` {
		t.Errorf("unexpected structuredContent: %s", res.StructuredContent)
	}
	value, ok := res.Value.(map[string]any)
	if !ok || value["foo"] != "bar" {
		t.Errorf("expected Value to be the parsed structuredContent verbatim, got %#v", res.Value)
	}
	if ft.dialCount != 1 {
		t.Errorf("expected exactly one dial, got %d", ft.dialCount)
	}
}

func TestCallToolJoinsAndParsesTextContent(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"content":[{"type":"text","text":"{\"count\""},{"type":"text","text":":3}"}]}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	res, err := sm.CallTool(context.Background(), "list_issues", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "{\"count\"\n:3}" {
		t.Errorf("expected joined text with newline separator, got %q", res.Text)
	}
	value, ok := res.Value.(map[string]any)
	if !ok || value["count"] != float64(3) {
		t.Errorf("expected joined text parsed as JSON, got %#v", res.Value)
	}
}

func TestCallToolIsErrorJoinsAllTextBlocks(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"boom"},{"type":"text","text":"details"}]}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	_, err := sm.CallTool(context.Background(), "list_issues", nil)
	var toolErr *errs.OfficialToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected OfficialToolError, got %v", err)
	}
	if toolErr.Message != "boom\ndetails" {
		t.Errorf("expected joined error message, got %q", toolErr.Message)
	}
}

func TestCallToolIsErrorReturnsOfficialToolError(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"boom"}]}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	_, err := sm.CallTool(context.Background(), "list_issues", nil)
	var toolErr *errs.OfficialToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected OfficialToolError, got %v", err)
	}
	if toolErr.Code != errs.CodeOfficialToolError {
		t.Errorf("expected CodeOfficialToolError, got %s", toolErr.Code)
	}
}

func TestCallToolRetriesOnceThenFails(t *testing.T) {
	ft := &fakeTransport{invokeErr: errors.New("connection reset")}
	sm := NewSessionManager("wss://example", nil, ft)

	_, err := sm.CallTool(context.Background(), "list_issues", nil)
	var toolErr *errs.OfficialToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected OfficialToolError, got %v", err)
	}
	if toolErr.Code != errs.CodeOfficialUnavailable {
		t.Errorf("expected CodeOfficialUnavailable, got %s", toolErr.Code)
	}
	if ft.dialCount != 2 {
		t.Errorf("expected two dial attempts (reconnect between retries), got %d", ft.dialCount)
	}
	if ft.closeCount < 1 {
		t.Errorf("expected force-disconnect between attempts, got %d closes", ft.closeCount)
	}
}

func TestCallToolRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	ft := &fakeTransport{response: json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`)}
	sm := NewSessionManager("wss://example", nil, ft)
	sm.transport = &sequencedTransport{fakeTransport: ft, failFirst: true, calls: &calls}

	res, err := sm.CallTool(context.Background(), "list_issues", nil)
	if err != nil {
		t.Fatalf("expected recovery on second attempt, got %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("expected text 'ok', got %q", res.Text)
	}
}

// sequencedTransport fails the first Invoke call and succeeds thereafter,
// used to exercise the reconnect-then-retry path end to end.
type sequencedTransport struct {
	*fakeTransport
	failFirst bool
	calls     *int
}

func (s *sequencedTransport) Invoke(ctx context.Context, method string, params any) (json.RawMessage, error) {
	*s.calls++
	if s.failFirst && *s.calls == 1 {
		return nil, errors.New("first attempt fails")
	}
	return s.fakeTransport.response, nil
}

func TestListToolsReturnsNames(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"tools":[{"name":"list_issues"},{"name":"create_comment"}]}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	names, err := sm.ListTools(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "list_issues" || names[1] != "create_comment" {
		t.Fatalf("expected [list_issues create_comment], got %v", names)
	}
}

func TestNewSessionManagerWithTimeoutsAppliesConfiguredBounds(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"content":[{"type":"text","text":"ok"}]}`)}
	sm := NewSessionManagerWithTimeouts("wss://example", nil, ft, 5*time.Second, 15*time.Second)

	if sm.connectTimeout != 5*time.Second {
		t.Errorf("expected connectTimeout 5s, got %s", sm.connectTimeout)
	}
	if sm.callTimeout != 15*time.Second {
		t.Errorf("expected callTimeout 15s, got %s", sm.callTimeout)
	}

	res, err := sm.CallTool(context.Background(), "list_issues", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "ok" {
		t.Errorf("expected text 'ok', got %q", res.Text)
	}
}

func TestHealthReflectsConnectionState(t *testing.T) {
	ft := &fakeTransport{response: json.RawMessage(`{"content":[]}`)}
	sm := NewSessionManager("wss://example", nil, ft)

	if sm.Health().Connected {
		t.Fatal("expected not connected before any call")
	}
	if _, err := sm.CallTool(context.Background(), "list_issues", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := sm.Health()
	if !h.Connected {
		t.Error("expected connected after a successful call")
	}
	if h.FailureCount != 0 {
		t.Errorf("expected FailureCount 0, got %d", h.FailureCount)
	}
}
