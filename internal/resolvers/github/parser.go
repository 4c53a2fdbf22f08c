package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

// DefaultWebHost is the host of GitHub web URLs
const DefaultWebHost = "github.com"

// Parser classifies GitHub web URLs. It does no I/O.
type Parser struct {
	webHost string
}

// NewParser creates a parser for URLs on webHost (github.com when empty)
func NewParser(webHost string) *Parser {
	webHost = strings.ToLower(strings.TrimSpace(webHost))
	if webHost == "" {
		webHost = DefaultWebHost
	}
	return &Parser{webHost: webHost}
}

// WebHost returns the host the parser accepts
func (p *Parser) WebHost() string {
	return p.webHost
}

// Handles reports whether u is a GitHub URL with at least owner and repository
// that is not a direct archive download link
func (p *Parser) Handles(u *url.URL) bool {
	if !utils.IsHTTPURL(u) || !strings.EqualFold(u.Hostname(), p.webHost) {
		return false
	}
	if utils.IsArchiveURL(u) {
		return false
	}
	return len(utils.PathSegments(u)) >= 2
}

// Classify parses u into a Reference. URLs the parser does not handle, and
// handled URLs of an unknown shape, return domain.ErrNotApplicable.
func (p *Parser) Classify(u *url.URL) (Reference, error) {
	if !p.Handles(u) {
		return Reference{}, domain.ErrNotApplicable
	}

	segments := utils.PathSegments(u)
	ref := Reference{
		Owner:      segments[0],
		Repository: strings.TrimSuffix(segments[1], ".git"),
		URL:        u,
	}
	if ref.Repository == "" {
		return Reference{}, domain.ErrNotApplicable
	}

	switch {
	case len(segments) == 2:
		ref.Shape = ShapeRoot
	case len(segments) >= 4 && segments[2] == "commit":
		ref.Shape = ShapeCommit
		ref.Selector = segments[3]
	case len(segments) >= 4 && segments[2] == "tree":
		ref.Shape = ShapeTree
		ref.Selector = strings.Join(segments[3:], "/")
	case len(segments) >= 5 && segments[2] == "releases" && segments[3] == "tag":
		ref.Shape = ShapeReleaseTag
		ref.Selector = segments[4]
	default:
		return Reference{}, domain.ErrNotApplicable
	}

	return ref, nil
}

// ParseAndClassify parses rawURL and classifies it
func (p *Parser) ParseAndClassify(rawURL string) (Reference, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	return p.Classify(u)
}
