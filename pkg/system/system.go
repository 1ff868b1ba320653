// Package system wires the local cache, the remote session, and the
// router together into the one object a host tool server needs to answer
// every inbound tool call (spec.md §6).
package system

import (
	"context"
	"time"

	"github.com/jra3/linear-reader/internal/config"
	"github.com/jra3/linear-reader/internal/diskstore"
	"github.com/jra3/linear-reader/internal/remote"
	"github.com/jra3/linear-reader/internal/router"
	"github.com/jra3/linear-reader/internal/snapshot"
)

// callTimeoutMargin is the "+10s" spec.md §4.8 adds on top of the
// configured read_timeout_seconds for the per-call result-wait bound.
const callTimeoutMargin = 10 * time.Second

// System owns the store handle, the cached snapshot, and the remote
// session, and exposes the router as the single entry point for calls.
type System struct {
	Router *router.Router

	store *diskstore.Store
	sm    *remote.SessionManager
}

// New opens the on-disk store at cfg.Store.DBPath, builds the cached
// snapshot loader with account scoping applied, and constructs the remote
// session manager and router over it.
func New(cfg *config.Config) (*System, error) {
	store, err := diskstore.Open(cfg.Store.DBPath)
	if err != nil {
		return nil, err
	}

	loader := snapshot.NewLoader(store)
	loader.Scope = snapshot.ScopeConfig{
		Emails:         cfg.Scope.Emails,
		UserAccountIDs: cfg.Scope.UserAccountIDs,
	}
	cache := snapshot.NewCachedWithTTL(loader, cfg.Cache.TTL)

	sseReadTimeout := time.Duration(cfg.Remote.SSEReadTimeoutSecond) * time.Second
	transport := remote.NewWebsocketTransportWithSSEReadTimeout(sseReadTimeout)

	connectTimeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	callTimeout := time.Duration(cfg.Remote.ReadTimeoutSeconds)*time.Second + callTimeoutMargin
	sm := remote.NewSessionManagerWithTimeouts(cfg.Remote.URL, cfg.Remote.Headers, transport, connectTimeout, callTimeout)

	return &System{
		Router: router.NewWithCoherenceWindow(cache, sm, cfg.Cache.CoherenceWindow),
		store:  store,
		sm:     sm,
	}, nil
}

// Close tears down the remote session and the on-disk store handle.
func (s *System) Close(ctx context.Context) error {
	_ = s.sm.Close()
	return s.store.Close()
}
