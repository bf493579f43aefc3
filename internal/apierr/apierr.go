// Package apierr defines the typed error kinds used across engines, per
// spec.md §7. Each kind is a small sentinel struct satisfying error, in the
// same style as materializer.ErrNotReady in the teacher repo, rather than a
// generic errors library.
package apierr

import "fmt"

// PluginError wraps a message surfaced directly by plugin code (§4.1).
type PluginError struct {
	PluginID string
	Message  string
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin_error: %s: %s", e.PluginID, e.Message)
}

// PluginSchemaError indicates a plugin's JSON result didn't match the
// expected shape.
type PluginSchemaError struct {
	PluginID string
	Method   string
	Cause    error
}

func (e *PluginSchemaError) Error() string {
	return fmt.Sprintf("plugin_schema_error: %s.%s: %v", e.PluginID, e.Method, e.Cause)
}

func (e *PluginSchemaError) Unwrap() error { return e.Cause }

// PluginDomainDenied indicates __fetch rejected a URL: scheme or host not
// in the plugin's allowlist.
type PluginDomainDenied struct {
	PluginID string
	URL      string
	Reason   string // "scheme" | "host"
}

func (e *PluginDomainDenied) Error() string {
	return fmt.Sprintf("plugin_domain_denied: %s: %s (%s)", e.PluginID, e.URL, e.Reason)
}

// UpstreamError represents a non-2xx (other than handled 429) response from
// a remote origin, e.g. during download or proxy.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream_error: %s: HTTP %d", e.URL, e.Status)
}

// PolicyDenied represents an immediate, non-retryable rejection: URL not
// allowlisted, unsupported scheme, or a path that escapes its root.
type PolicyDenied struct {
	Reason string
}

func (e *PolicyDenied) Error() string { return "policy_denied: " + e.Reason }

// NotFound indicates a requested entity does not exist in storage.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string { return fmt.Sprintf("not_found: %s %s", e.Kind, e.ID) }

// Integrity indicates storage and the filesystem disagree about a row that
// storage believed was durable (missing download file, missing chapter
// folder). The row is flipped to failed, not deleted.
type Integrity struct {
	Reason string
}

func (e *Integrity) Error() string { return "integrity: " + e.Reason }

// Cancelled distinguishes a user-initiated stop from a real failure; it is
// never logged as an error and never retried.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "cancelled" }
