package bulkverify

import (
	"fmt"
	"time"
)

// APIError is returned when the verification service responds with an
// unexpected non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bulkverify: HTTP %d: %s", e.StatusCode, e.Body)
}

// AuthError is returned when credentials are missing or the service rejects
// the login.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bulkverify: auth: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("bulkverify: auth: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for malformed input detected locally, before
// any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bulkverify: invalid %s: %s", e.Field, e.Message)
}

// RateLimitError is returned on a 429 from the service. It is surfaced to the
// caller unchanged; the client never retries it locally.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("bulkverify: rate limited (retry after %s): %s", e.RetryAfter, e.Body)
}
