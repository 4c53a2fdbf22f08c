package github

import (
	"fmt"
	"net/url"

	"github.com/quantmind-br/ghsnap/internal/domain"
)

// Shape is the structural category of a GitHub URL
type Shape string

const (
	ShapeRoot       Shape = "root"
	ShapeCommit     Shape = "commit"
	ShapeTree       Shape = "tree"
	ShapeReleaseTag Shape = "release_tag"
)

// Reference is a classified GitHub URL
type Reference struct {
	Owner      string   `json:"owner" yaml:"owner"`
	Repository string   `json:"repository" yaml:"repository"`
	Shape      Shape    `json:"shape" yaml:"shape"`
	Selector   string   `json:"selector,omitempty" yaml:"selector,omitempty"`
	URL        *url.URL `json:"-" yaml:"-"`
}

// FullName returns owner/repository
func (r Reference) FullName() string {
	return r.Owner + "/" + r.Repository
}

// originURL returns the URL the reference was classified from, or the
// canonical repository URL on webHost when it was built by hand
func (r Reference) originURL(webHost string) *url.URL {
	if r.URL != nil {
		return r.URL
	}
	return &url.URL{Scheme: "https", Host: webHost, Path: "/" + r.FullName()}
}

func (r Reference) validate() error {
	if r.Owner == "" || r.Repository == "" {
		return fmt.Errorf("%w: reference needs owner and repository", domain.ErrInvalidURL)
	}
	switch r.Shape {
	case ShapeRoot:
	case ShapeCommit, ShapeTree, ShapeReleaseTag:
		if r.Selector == "" {
			return fmt.Errorf("%w: %s reference needs a selector", domain.ErrInvalidURL, r.Shape)
		}
	default:
		return fmt.Errorf("%w: unknown reference shape %q", domain.ErrInvalidURL, r.Shape)
	}
	return nil
}

// RepositoryDetails is the subset of GET /repos/{owner}/{repo} the resolver needs
type RepositoryDetails struct {
	DefaultBranch string `json:"default_branch"`
	BranchesURL   string `json:"branches_url"`
	ArchiveURL    string `json:"archive_url"`
}

// branchResponse is GET {branches_url}/{branch}
type branchResponse struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// gitObject is the target of a ref or annotated tag
type gitObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"`
}

// refResponse is one entry of GET /git/refs/tags, or GET /git/ref/tags/{tag}
type refResponse struct {
	Ref    string    `json:"ref"`
	Object gitObject `json:"object"`
}

// annotatedTagResponse is GET /git/tags/{sha}
type annotatedTagResponse struct {
	Tag    string    `json:"tag"`
	Object gitObject `json:"object"`
}

const (
	objectTypeCommit = "commit"
	objectTypeTag    = "tag"
)

// TagLookup is the outcome of best-effort tag discovery. Tags is never nil.
// Err is set when the lookup failed, fully or for some entries; Tags then
// holds whatever could still be determined.
type TagLookup struct {
	Tags domain.TagSet
	Err  error
}

// Failed reports whether discovery did not complete
func (l TagLookup) Failed() bool {
	return l.Err != nil
}

// Materialized describes an archive downloaded and extracted by the Materializer
type Materialized struct {
	// Root is the canonical root directory chosen by the extractor
	Root string
	// WorkDir is the temporary directory holding the archive and its extraction
	WorkDir string
	// ArchivePath is the downloaded archive file
	ArchivePath string
	// Bytes is the size of the downloaded archive
	Bytes int64
}
