// Package errs defines the error taxonomy from spec.md §7. Each type
// carries the discriminator fields the router and callers need and
// implements error so the usual errors.As propagation works.
package errs

import "fmt"

// LocalFallbackCode enumerates the reasons a local handler can decline a
// request and ask the router to dispatch it remotely instead.
type LocalFallbackCode string

const (
	// CodeUnsupportedType means the tool's "type" argument names a kind
	// the local cache has no data for (e.g. get_status_updates(type=...)
	// with anything other than "project").
	CodeUnsupportedType LocalFallbackCode = "unsupported_type"
	// CodeUnsupportedFilter means a supported tool was called with a
	// filter combination the local cache cannot evaluate correctly.
	CodeUnsupportedFilter LocalFallbackCode = "unsupported_filter"
)

// LocalFallbackRequested is raised inside a local handler to signal "this
// request is outside what the local cache can answer correctly." The
// router always catches it and substitutes a remote call with the same
// arguments.
type LocalFallbackRequested struct {
	Code    LocalFallbackCode
	Message string
}

func (e *LocalFallbackRequested) Error() string {
	return fmt.Sprintf("local fallback requested (%s): %s", e.Code, e.Message)
}

// NewLocalFallback constructs a LocalFallbackRequested.
func NewLocalFallback(code LocalFallbackCode, message string) *LocalFallbackRequested {
	return &LocalFallbackRequested{Code: code, Message: message}
}

// ScopeConfigurationError surfaces from the snapshot loader when account
// scoping is enabled but matches no user, or no organization. It marks the
// snapshot degraded; subsequent reads fall through to remote.
type ScopeConfigurationError struct {
	Message string
}

func (e *ScopeConfigurationError) Error() string { return e.Message }

// NewScopeConfigurationError constructs a ScopeConfigurationError.
func NewScopeConfigurationError(message string) *ScopeConfigurationError {
	return &ScopeConfigurationError{Message: message}
}

// SnapshotLoadError wraps a disk-read or decoder failure encountered while
// materializing a snapshot. It marks the cache degraded and preserves the
// prior snapshot, if any; it is swallowed into degraded health rather than
// propagated to callers.
type SnapshotLoadError struct {
	Reason string
	Err    error
}

func (e *SnapshotLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("snapshot load failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("snapshot load failed: %s", e.Reason)
}

func (e *SnapshotLoadError) Unwrap() error { return e.Err }

// NewSnapshotLoadError constructs a SnapshotLoadError.
func NewSnapshotLoadError(reason string, err error) *SnapshotLoadError {
	return &SnapshotLoadError{Reason: reason, Err: err}
}

// OfficialToolErrorCode enumerates the two ways a remote call can fail.
type OfficialToolErrorCode string

const (
	// CodeOfficialToolError means the remote service returned a
	// structured error (isError set on the result).
	CodeOfficialToolError OfficialToolErrorCode = "official_tool_error"
	// CodeOfficialUnavailable means the transport or the two-attempt RPC
	// sequence failed outright.
	CodeOfficialUnavailable OfficialToolErrorCode = "official_unavailable"
)

// OfficialToolError is surfaced verbatim to callers when the remote
// session fails.
type OfficialToolError struct {
	Code    OfficialToolErrorCode
	Message string
}

func (e *OfficialToolError) Error() string {
	return fmt.Sprintf("official tool error (%s): %s", e.Code, e.Message)
}

// NewOfficialToolError constructs an OfficialToolError.
func NewOfficialToolError(code OfficialToolErrorCode, message string) *OfficialToolError {
	return &OfficialToolError{Code: code, Message: message}
}
