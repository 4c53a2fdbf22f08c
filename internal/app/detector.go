package app

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quantmind-br/ghsnap/internal/config"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/resolvers"
	"github.com/quantmind-br/ghsnap/internal/resolvers/github"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

// ResolverType names a resolver
type ResolverType string

const (
	ResolverGitHub  ResolverType = github.ResolverName
	ResolverUnknown ResolverType = "unknown"
)

// Dependencies contains the collaborators shared by all resolvers
type Dependencies struct {
	Config         *config.Config
	Store          domain.Configuration
	HTTPClient     *http.Client
	Extractor      domain.Extractor
	Logger         *utils.Logger
	Progress       bool
	ProgressOutput io.Writer
}

// GetAllResolvers returns every available resolver.
// The chain orders them by priority, so the order here does not matter.
func GetAllResolvers(deps Dependencies) []domain.Resolver {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}

	return []domain.Resolver{
		github.NewResolver(github.Dependencies{
			HTTPClient: deps.HTTPClient,
			Config:     deps.Store,
			Extractor:  deps.Extractor,
			Logger:     deps.Logger,
			Options: github.Options{
				APIURL:          cfg.GitHub.APIURL,
				WebHost:         cfg.GitHub.WebHost,
				UserAgent:       cfg.GitHub.UserAgent,
				APIVersion:      cfg.GitHub.APIVersion,
				TagWorkers:      cfg.GitHub.TagWorkers,
				MaxTagPeels:     cfg.GitHub.MaxTagPeels,
				TempDir:         cfg.Archive.TempDir,
				MaxArchiveBytes: cfg.MaxArchiveBytes(),
				Progress:        deps.Progress,
				ProgressOutput:  deps.ProgressOutput,
			},
		}),
	}
}

// BuildChain creates a resolver chain holding all available resolvers
func BuildChain(deps Dependencies) *resolvers.Chain {
	return resolvers.NewChain(deps.Logger, GetAllResolvers(deps)...)
}

// DetectResolver returns the type of the resolver chain would dispatch rawURL to
func DetectResolver(chain *resolvers.Chain, rawURL string) ResolverType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ResolverUnknown
	}
	r := chain.FindMatching(u)
	if r == nil {
		return ResolverUnknown
	}
	return ResolverType(r.Name())
}
