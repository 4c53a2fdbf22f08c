package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	// ErrNotApplicable indicates a resolver does not handle the URL
	ErrNotApplicable = errors.New("not applicable")

	// ErrNoResolver indicates no resolver in the chain handles the URL
	ErrNoResolver = fmt.Errorf("no resolver found for URL: %w", ErrNotApplicable)

	// ErrNotFound indicates the reference does not resolve to a snapshot
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the API rejected the credentials (HTTP 401)
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the API refused access or rate limited the caller (HTTP 403)
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidURL indicates an invalid URL was provided
	ErrInvalidURL = errors.New("invalid URL")

	// ErrTooLarge indicates a download or extraction exceeded its size limit
	ErrTooLarge = errors.New("size limit exceeded")
)

// APIError represents a non-success response from the remote API
type APIError struct {
	URL         string
	StatusCode  int
	RateLimited bool
	Err         error
}

func (e *APIError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("api error for %s: status %d (rate limit exhausted): %v", e.URL, e.StatusCode, e.Err)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("api error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("api error for %s: %v", e.URL, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError classifies an HTTP status into the error taxonomy.
// 401 and 403 map to ErrUnauthorized and ErrForbidden, everything else to ErrNotFound.
func NewAPIError(url string, statusCode int) *APIError {
	err := ErrNotFound
	switch statusCode {
	case http.StatusUnauthorized:
		err = ErrUnauthorized
	case http.StatusForbidden:
		err = ErrForbidden
	}
	return &APIError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsAuthError reports whether err is an authorization failure (401 or 403)
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// RetryableError indicates an error that a caller-level policy may retry
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// ResolveError records which resolver failed for which URL
type ResolveError struct {
	Resolver string
	URL      string
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolver %s failed for %s: %v", e.Resolver, e.URL, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// NewResolveError creates a new ResolveError
func NewResolveError(resolver, url string, err error) *ResolveError {
	return &ResolveError{
		Resolver: resolver,
		URL:      url,
		Err:      err,
	}
}
