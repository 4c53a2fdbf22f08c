package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quantmind-br/ghsnap/internal/archive"
	"github.com/quantmind-br/ghsnap/internal/config"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/fetcher"
	"github.com/quantmind-br/ghsnap/internal/resolvers"
	"github.com/quantmind-br/ghsnap/internal/resolvers/github"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

// Orchestrator turns a URL into a materialized snapshot
type Orchestrator struct {
	config     *config.Config
	chain      *resolvers.Chain
	parser     *github.Parser
	retrier    *fetcher.Retrier
	httpClient *http.Client
	logger     *utils.Logger
}

// OrchestratorOptions contains options for creating an orchestrator
type OrchestratorOptions struct {
	Config *config.Config
	// Store supplies github.token. Defaults to the token held by Config.
	Store   domain.Configuration
	Verbose bool
	// Progress renders download and extraction progress on ProgressOutput
	Progress       bool
	ProgressOutput io.Writer
	// LogOutput receives log lines; stderr when nil
	LogOutput io.Writer
	// Transport replaces the default HTTP round tripper
	Transport http.RoundTripper
	// Resolvers replaces the default resolver set
	Resolvers []domain.Resolver
}

// NewOrchestrator creates a new orchestrator with the given configuration
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  opts.LogOutput,
		Verbose: opts.Verbose,
	})

	store := opts.Store
	if store == nil {
		store = config.MapStore{config.KeyGitHubToken: cfg.GitHub.Token}
	}

	httpClient := fetcher.NewHTTPClient(fetcher.ClientOptions{
		Timeout:   cfg.GitHub.Timeout,
		Transport: opts.Transport,
		Logger:    logger,
	})

	resolverSet := opts.Resolvers
	if len(resolverSet) == 0 {
		resolverSet = GetAllResolvers(Dependencies{
			Config:     cfg,
			Store:      store,
			HTTPClient: httpClient,
			Extractor: archive.NewExtractor(archive.ExtractorOptions{
				MaxBytes:       cfg.MaxArchiveBytes(),
				Progress:       opts.Progress,
				ProgressOutput: opts.ProgressOutput,
				Logger:         logger,
			}),
			Logger:         logger,
			Progress:       opts.Progress,
			ProgressOutput: opts.ProgressOutput,
		})
	}

	return &Orchestrator{
		config: cfg,
		chain:  resolvers.NewChain(logger, resolverSet...),
		parser: github.NewParser(cfg.GitHub.WebHost),
		retrier: fetcher.NewRetrier(fetcher.RetrierOptions{
			MaxRetries:      cfg.Retry.MaxRetries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			Logger:          logger,
		}),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Run resolves rawURL into a snapshot. Resolutions failing with a
// domain.RetryableError are retried up to retry.max_retries times.
// The caller owns the snapshot and should call Cleanup when done with it.
func (o *Orchestrator) Run(ctx context.Context, rawURL string) (*domain.Snapshot, error) {
	startTime := time.Now()

	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("url", u.String()).
		Int("max_retries", o.retrier.MaxRetries()).
		Msg("Starting resolution")

	snapshot, err := fetcher.RetryWithValue(ctx, o.retrier, func() (*domain.Snapshot, error) {
		return o.chain.Resolve(ctx, u)
	})
	if err != nil {
		if ctx.Err() != nil {
			o.logger.Warn().Msg("Resolution cancelled")
			return nil, ctx.Err()
		}
		return nil, err
	}

	o.logger.Info().
		Str("commit", snapshot.CommitSHA).
		Str("branch", snapshot.Branch).
		Str("root", snapshot.RootPath).
		Dur("duration", time.Since(startTime)).
		Msg("Resolution completed")

	return snapshot, nil
}

// Classify parses rawURL into a GitHub reference without any network access
func (o *Orchestrator) Classify(rawURL string) (github.Reference, error) {
	return o.parser.ParseAndClassify(rawURL)
}

// GetResolverName returns the name of the resolver rawURL would be dispatched to
func (o *Orchestrator) GetResolverName(rawURL string) string {
	return string(DetectResolver(o.chain, rawURL))
}

// ValidateURL checks if the URL can be processed
func (o *Orchestrator) ValidateURL(rawURL string) error {
	if DetectResolver(o.chain, rawURL) == ResolverUnknown {
		return fmt.Errorf("unsupported URL %s: %w", rawURL, domain.ErrNoResolver)
	}
	return nil
}

// Close releases idle connections held by the orchestrator
func (o *Orchestrator) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

func parseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty URL", domain.ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if !utils.IsHTTPURL(u) {
		return nil, fmt.Errorf("%w: %s is not an absolute http(s) URL", domain.ErrInvalidURL, rawURL)
	}
	return u, nil
}
