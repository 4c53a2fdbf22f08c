package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(maxRetries int) *Retrier {
	return NewRetrier(RetrierOptions{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	})
}

func transient() error {
	return &domain.RetryableError{Err: errors.New("connection reset")}
}

func TestDefaultClientOptions(t *testing.T) {
	opts := DefaultClientOptions()

	assert.Equal(t, 10*time.Minute, opts.Timeout)
	assert.Equal(t, DefaultMaxRedirects, opts.MaxRedirects)
	assert.Nil(t, opts.Transport)
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("zero options use defaults", func(t *testing.T) {
		client := NewHTTPClient(ClientOptions{})
		assert.Equal(t, 10*time.Minute, client.Timeout)
		assert.IsType(t, &LoggingTransport{}, client.Transport)
	})

	t.Run("custom timeout", func(t *testing.T) {
		client := NewHTTPClient(ClientOptions{Timeout: 5 * time.Second})
		assert.Equal(t, 5*time.Second, client.Timeout)
	})

	t.Run("follows redirects", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/start" {
				http.Redirect(w, r, "/end", http.StatusFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(ClientOptions{})
		resp, err := client.Get(server.URL + "/start")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/end", resp.Request.URL.Path)
	})

	t.Run("stops redirect loops", func(t *testing.T) {
		hops := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hops++
			http.Redirect(w, r, fmt.Sprintf("/hop/%d", hops), http.StatusFound)
		}))
		defer server.Close()

		client := NewHTTPClient(ClientOptions{MaxRedirects: 3})
		_, err := client.Get(server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stopped after 3 redirects")
		assert.Equal(t, 3, hops)
	})
}

func TestLoggingTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := utils.NewLogger(utils.LoggerOptions{Level: "debug", Format: "json", Output: &buf})
	client := &http.Client{Transport: NewLoggingTransport(nil, logger)}

	req, err := http.NewRequest(http.MethodGet, server.URL+"/repos/acme/widgets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "token secret-value")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"component":"http"`)
	assert.Contains(t, out, `"rate_limit_remaining":"4999"`)
	assert.Contains(t, out, "/repos/acme/widgets")
	assert.NotContains(t, out, "secret-value")
}

func TestLoggingTransport_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	logger := utils.NewLogger(utils.LoggerOptions{Level: "debug", Format: "json", Output: &buf})
	client := &http.Client{Transport: NewLoggingTransport(nil, logger)}

	_, err := client.Get(url)
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "Request failed")
}

func TestDefaultRetrierOptions(t *testing.T) {
	opts := DefaultRetrierOptions()

	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 1*time.Second, opts.InitialInterval)
	assert.Equal(t, 30*time.Second, opts.MaxInterval)
	assert.Equal(t, 2.0, opts.Multiplier)
}

func TestNewRetrier(t *testing.T) {
	tests := []struct {
		name  string
		opts  RetrierOptions
		check func(t *testing.T, r *Retrier)
	}{
		{
			name: "with valid options",
			opts: RetrierOptions{
				MaxRetries:      5,
				InitialInterval: 2 * time.Second,
				MaxInterval:     60 * time.Second,
				Multiplier:      3.0,
			},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 5, r.MaxRetries())
				assert.Equal(t, 2*time.Second, r.initialInterval)
				assert.Equal(t, 60*time.Second, r.maxInterval)
				assert.Equal(t, 3.0, r.multiplier)
			},
		},
		{
			name: "zero max retries disables retrying",
			opts: RetrierOptions{MaxRetries: 0},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 0, r.MaxRetries())
			},
		},
		{
			name: "negative max retries clamps to zero",
			opts: RetrierOptions{MaxRetries: -2},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 0, r.MaxRetries())
			},
		},
		{
			name: "zero intervals use defaults",
			opts: RetrierOptions{},
			check: func(t *testing.T, r *Retrier) {
				assert.Equal(t, 1*time.Second, r.initialInterval)
				assert.Equal(t, 30*time.Second, r.maxInterval)
				assert.Equal(t, 2.0, r.multiplier)
				assert.NotNil(t, r.logger)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewRetrier(tt.opts))
		})
	}
}

func TestRetrier_Retry(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(3).Retry(context.Background(), func() error {
			attempts++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries on retryable error", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(3).Retry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return transient()
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("fails after max retries", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(2).Retry(context.Background(), func() error {
			attempts++
			return transient()
		})

		assert.True(t, domain.IsRetryable(err))
		assert.Equal(t, 3, attempts)
	})

	t.Run("zero retries runs once", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(0).Retry(context.Background(), func() error {
			attempts++
			return transient()
		})

		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("non retryable error stops immediately", func(t *testing.T) {
		attempts := 0
		err := fastRetrier(5).Retry(context.Background(), func() error {
			attempts++
			return fmt.Errorf("lookup: %w", domain.ErrNotFound)
		})

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		attempts := 0
		err := fastRetrier(5).Retry(ctx, func() error {
			attempts++
			return transient()
		})

		assert.Error(t, err)
		assert.LessOrEqual(t, attempts, 1)
	})
}

func TestRetryWithValue(t *testing.T) {
	t.Run("returns value after retries", func(t *testing.T) {
		attempts := 0
		result, err := RetryWithValue(context.Background(), fastRetrier(3), func() (string, error) {
			attempts++
			if attempts < 2 {
				return "", transient()
			}
			return "success", nil
		})

		assert.NoError(t, err)
		assert.Equal(t, "success", result)
		assert.Equal(t, 2, attempts)
	})

	t.Run("returns last error", func(t *testing.T) {
		_, err := RetryWithValue(context.Background(), fastRetrier(1), func() (int, error) {
			return 0, fmt.Errorf("download: %w", domain.ErrForbidden)
		})

		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestShouldRetryStatus(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{522, true},
		{531, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldRetryStatus(tt.statusCode))
		})
	}
}
