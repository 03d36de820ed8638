package providers

import "fmt"

// RequestError carries the upstream failure details a caller needs,
// including enough for the fallback decision (status + body snippet).
type RequestError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if no response was received)
	StatusCode int

	// Body is a truncated snippet of the upstream response body
	Body string

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Snippet truncates a response body for diagnostics. Upstream bodies are
// never forwarded to clients in full.
func Snippet(body string, max int) string {
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}
