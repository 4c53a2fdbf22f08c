package fetcher

import (
	"fmt"
	"net/http"
	"time"

	"github.com/quantmind-br/ghsnap/internal/utils"
)

// DefaultMaxRedirects bounds redirect chains (archive downloads redirect to codeload)
const DefaultMaxRedirects = 10

// ClientOptions contains options for creating an HTTP client
type ClientOptions struct {
	// Timeout bounds a whole request, body download included
	Timeout      time.Duration
	MaxRedirects int
	// Transport is the underlying round tripper; http.DefaultTransport when nil
	Transport http.RoundTripper
	Logger    *utils.Logger
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:      10 * time.Minute,
		MaxRedirects: DefaultMaxRedirects,
	}
}

// NewHTTPClient creates the HTTP client shared by API lookups and archive downloads.
// Requests are logged through a LoggingTransport.
func NewHTTPClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	maxRedirects := opts.MaxRedirects
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: NewLoggingTransport(opts.Transport, opts.Logger),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
