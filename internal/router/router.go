// Package router implements per-tool request dispatch between the local
// snapshot and the remote session (C9): a static dispatch table, coherence-
// window suppression after remote writes, and health aggregation.
package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jra3/linear-reader/internal/applog"
	"github.com/jra3/linear-reader/internal/errs"
	"github.com/jra3/linear-reader/internal/handler"
	"github.com/jra3/linear-reader/internal/record"
	"github.com/jra3/linear-reader/internal/remote"
	"github.com/jra3/linear-reader/internal/snapshot"
)

// Class is a dispatch table value: how a tool name is routed.
type Class int

const (
	// LocalOnly never falls back; a LocalFallbackRequested from one of
	// these handlers is a programming error, surfaced as-is.
	LocalOnly Class = iota
	// OfficialOnly always dispatches to the remote session.
	OfficialOnly
	// LocalFirstFallback runs the local handler and falls back to remote
	// on LocalFallbackRequested or degraded snapshot health.
	LocalFirstFallback
	// OfficialWithCoherenceWindow behaves like LocalFirstFallback outside
	// a post-write coherence window, and like OfficialOnly inside one.
	OfficialWithCoherenceWindow
)

// CoherenceWindow is the default post-write suppression duration
// (spec.md §4.9's COHERENCE_WINDOW_SECONDS).
const CoherenceWindow = 30 * time.Second

// dispatchTable maps every inbound tool name to its routing class. Meta
// tools are local-only; official_call_tool is the write escape hatch.
var dispatchTable = map[string]Class{
	"list_issues":          OfficialWithCoherenceWindow,
	"get_issue":            OfficialWithCoherenceWindow,
	"list_teams":           OfficialWithCoherenceWindow,
	"get_team":             OfficialWithCoherenceWindow,
	"list_projects":        OfficialWithCoherenceWindow,
	"get_project":          OfficialWithCoherenceWindow,
	"list_users":           OfficialWithCoherenceWindow,
	"get_user":             OfficialWithCoherenceWindow,
	"list_issue_statuses":  OfficialWithCoherenceWindow,
	"get_issue_status":     OfficialWithCoherenceWindow,
	"list_comments":        OfficialWithCoherenceWindow,
	"list_issue_labels":    OfficialWithCoherenceWindow,
	"list_initiatives":     OfficialWithCoherenceWindow,
	"get_initiative":       OfficialWithCoherenceWindow,
	"list_cycles":          OfficialWithCoherenceWindow,
	"list_documents":       OfficialWithCoherenceWindow,
	"get_document":         OfficialWithCoherenceWindow,
	"list_milestones":      OfficialWithCoherenceWindow,
	"get_milestone":        OfficialWithCoherenceWindow,
	"get_status_updates":   OfficialWithCoherenceWindow,
	"list_project_updates": OfficialWithCoherenceWindow,

	"list_official_tools": LocalOnly,
	"refresh_cache":       LocalOnly,
	"get_cache_health":    LocalOnly,

	"official_call_tool": OfficialOnly,
}

// isWriteTool reports whether a call mutates remote state: only an
// official_call_tool call whose nested "name" argument contains one of
// create/update/delete/archive/unarchive/remove/set_ counts as a write.
func isWriteTool(name string, args record.Map) bool {
	if name != "official_call_tool" {
		return false
	}
	nested := strings.ToLower(args.String("name"))
	for _, verb := range []string{"create", "update", "delete", "archive", "unarchive", "remove", "set_"} {
		if strings.Contains(nested, verb) {
			return true
		}
	}
	return false
}

// Health is the merged view returned by get_cache_health / get_health.
type Health struct {
	Snapshot          snapshot.Health
	Remote            remote.Health
	CoherenceDeadline time.Time
}

// Router dispatches tool calls per the table above, holding the coherence
// window state shared across all OfficialWithCoherenceWindow tools.
type Router struct {
	cache   *snapshot.Cached
	session *remote.SessionManager
	window  time.Duration

	mu                sync.Mutex
	coherenceDeadline time.Time
}

// New constructs a Router over a cached snapshot and a remote session,
// using the default CoherenceWindow.
func New(cache *snapshot.Cached, session *remote.SessionManager) *Router {
	return &Router{cache: cache, session: session, window: CoherenceWindow}
}

// NewWithCoherenceWindow is New with an explicit window override.
func NewWithCoherenceWindow(cache *snapshot.Cached, session *remote.SessionManager, window time.Duration) *Router {
	return &Router{cache: cache, session: session, window: window}
}

func (r *Router) inCoherenceWindow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.coherenceDeadline)
}

func (r *Router) openCoherenceWindow() {
	r.mu.Lock()
	r.coherenceDeadline = time.Now().Add(r.window)
	deadline := r.coherenceDeadline
	r.mu.Unlock()
	r.cache.MarkStale()
	applog.Router("coherence window opened until %s", deadline.Format(time.RFC3339))
}

func (r *Router) coherenceDeadlineValue() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coherenceDeadline
}

// CallRead dispatches a read-class tool call, consulting the snapshot and
// falling back to remote as the table and current health dictate.
func (r *Router) CallRead(ctx context.Context, name string, args record.Map) (any, error) {
	class, ok := dispatchTable[name]
	if !ok {
		return nil, errs.NewLocalFallback(errs.CodeUnsupportedType, "unknown tool: "+name)
	}

	switch class {
	case LocalOnly:
		return r.callMeta(ctx, name, args)
	case OfficialOnly:
		return r.CallOfficial(ctx, name, args)
	case LocalFirstFallback:
		return r.callLocalFirst(ctx, name, args)
	case OfficialWithCoherenceWindow:
		if r.inCoherenceWindow() {
			return r.callRemoteRead(ctx, name, args)
		}
		return r.callLocalFirst(ctx, name, args)
	default:
		return nil, errs.NewLocalFallback(errs.CodeUnsupportedType, "unrouted class for tool: "+name)
	}
}

// callMeta dispatches the three LOCAL_ONLY meta tools directly: none of
// them reads the snapshot through handler.Table, so they're handled here
// rather than registered as local handlers.
func (r *Router) callMeta(ctx context.Context, name string, args record.Map) (any, error) {
	switch name {
	case "list_official_tools":
		names, err := r.session.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		return names, nil
	case "refresh_cache":
		return r.RefreshLocalCache(ctx), nil
	case "get_cache_health":
		return r.GetHealth(), nil
	default:
		return nil, errs.NewLocalFallback(errs.CodeUnsupportedType, "no local handler for "+name)
	}
}

func (r *Router) callLocalFirst(ctx context.Context, name string, args record.Map) (any, error) {
	fn, ok := handler.Table[name]
	if !ok {
		return r.callRemoteRead(ctx, name, args)
	}
	if r.cache.Health().Degraded {
		return r.callRemoteRead(ctx, name, args)
	}
	snap := r.cache.EnsureFresh(ctx)
	result, err := fn(snap, args)
	var fallback *errs.LocalFallbackRequested
	if errors.As(err, &fallback) {
		return r.callRemoteRead(ctx, name, args)
	}
	return result, err
}

func (r *Router) callRemoteRead(ctx context.Context, name string, args record.Map) (any, error) {
	res, err := r.session.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return remoteResultValue(res), nil
}

// CallOfficial is the pass-through path for writes and the escape hatch.
// On a successful write it opens (or extends) the coherence window.
func (r *Router) CallOfficial(ctx context.Context, name string, args record.Map) (any, error) {
	res, err := r.session.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if isWriteTool(name, args) {
		r.openCoherenceWindow()
	}
	return remoteResultValue(res), nil
}

// remoteResultValue returns res's decoded value verbatim: the caller gets
// back exactly what the remote tool produced, not a raw-JSON-string wrapper.
func remoteResultValue(res *remote.Result) any {
	if res == nil {
		return nil
	}
	return res.Value
}

// RefreshLocalCache force-refreshes the snapshot and returns health.
func (r *Router) RefreshLocalCache(ctx context.Context) Health {
	snapHealth := r.cache.ForceRefresh(ctx)
	return Health{Snapshot: snapHealth, CoherenceDeadline: r.coherenceDeadlineValue()}
}

// GetHealth merges snapshot and remote health with the coherence-window
// deadline.
func (r *Router) GetHealth() Health {
	return Health{
		Snapshot:          r.cache.Health(),
		Remote:            r.session.Health(),
		CoherenceDeadline: r.coherenceDeadlineValue(),
	}
}
