package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/quantmind-br/ghsnap/internal/config"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
	"github.com/quantmind-br/ghsnap/pkg/version"
)

const (
	// DefaultAPIURL is the GitHub REST API base
	DefaultAPIURL = "https://api.github.com"
	// DefaultAPIVersion is sent as X-GitHub-Api-Version
	DefaultAPIVersion = "2022-11-28"

	mediaTypeJSON = "application/vnd.github.v3+json"
	mediaTypeSHA  = "application/vnd.github.sha"

	// maxSHABody bounds the plain-text body of a SHA lookup
	maxSHABody = 1024
)

// Client performs GitHub REST requests. Every request carries the API version,
// the User-Agent and, when github.token is configured, the token.
type Client struct {
	httpClient *http.Client
	config     domain.Configuration
	apiURL     string
	userAgent  string
	apiVersion string
	logger     *utils.Logger
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	HTTPClient *http.Client
	// Config supplies the optional token under github.token
	Config     domain.Configuration
	APIURL     string
	UserAgent  string
	APIVersion string
	Logger     *utils.Logger
}

// NewClient creates a new GitHub API client
func NewClient(opts ClientOptions) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Config == nil {
		opts.Config = config.MapStore{}
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = version.UserAgent()
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}

	return &Client{
		httpClient: opts.HTTPClient,
		config:     opts.Config,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		userAgent:  opts.UserAgent,
		apiVersion: opts.APIVersion,
		logger:     opts.Logger,
	}
}

// APIURL returns the API base URL without trailing slash
func (c *Client) APIURL() string {
	return c.apiURL
}

func (c *Client) newRequest(ctx context.Context, target, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}

	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("X-GitHub-Api-Version", c.apiVersion)
	req.Header.Set("User-Agent", c.userAgent)
	if token, ok := c.config.String(config.KeyGitHubToken); ok {
		req.Header.Set("Authorization", "token "+token)
	}

	return req, nil
}

// do sends a GET and returns the response when the status is 200.
// Other statuses are returned as *domain.APIError, transport failures as is.
func (c *Client) do(ctx context.Context, target, accept string) (*http.Response, error) {
	req, err := c.newRequest(ctx, target, accept)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		apiErr := domain.NewAPIError(target, resp.StatusCode)
		apiErr.RateLimited = resp.StatusCode == http.StatusForbidden &&
			resp.Header.Get("X-RateLimit-Remaining") == "0"
		return nil, apiErr
	}

	return resp, nil
}

// lookupError turns a metadata lookup failure into the error taxonomy:
// API errors pass through, context errors pass through, and transport or
// decode failures are logged and reported as not found.
func (c *Client) lookupError(ctx context.Context, target string, err error) error {
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	c.logger.Error().
		Err(err).
		Str("url", target).
		Msg("GitHub lookup failed")
	return fmt.Errorf("%s: %w: %v", target, domain.ErrNotFound, err)
}

// getJSON fetches target and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, target string, out interface{}) error {
	c.logger.Debug().Str("url", target).Msg("GitHub lookup")

	resp, err := c.do(ctx, target, mediaTypeJSON)
	if err != nil {
		return c.lookupError(ctx, target, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.lookupError(ctx, target, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// getSHA fetches target with the SHA media type and returns the trimmed body
func (c *Client) getSHA(ctx context.Context, target string) (string, error) {
	c.logger.Debug().Str("url", target).Msg("GitHub SHA lookup")

	resp, err := c.do(ctx, target, mediaTypeSHA)
	if err != nil {
		return "", c.lookupError(ctx, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSHABody))
	if err != nil {
		return "", c.lookupError(ctx, target, fmt.Errorf("read response: %w", err))
	}
	return strings.TrimSpace(string(body)), nil
}

// download starts an archive download. The caller closes the body.
func (c *Client) download(ctx context.Context, target string) (*http.Response, error) {
	c.logger.Debug().Str("url", target).Msg("Downloading archive")
	return c.do(ctx, target, "")
}
