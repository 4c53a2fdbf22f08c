package fetcher

import (
	"net/http"
	"time"

	"github.com/quantmind-br/ghsnap/internal/utils"
)

// LoggingTransport is an http.RoundTripper that logs every request at debug level.
// The Authorization header is never logged.
type LoggingTransport struct {
	base   http.RoundTripper
	logger *utils.Logger
}

// NewLoggingTransport wraps base, or http.DefaultTransport when base is nil
func NewLoggingTransport(base http.RoundTripper, logger *utils.Logger) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LoggingTransport{
		base:   base,
		logger: logger.WithComponent("http"),
	}
}

// RoundTrip implements http.RoundTripper
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("elapsed", elapsed).
			Msg("Request failed")
		return nil, err
	}

	event := t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed)
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		event = event.Str("rate_limit_remaining", remaining)
	}
	event.Msg("Request completed")

	return resp, nil
}
