package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/quantmind-br/ghsnap/internal/domain"
	"github.com/quantmind-br/ghsnap/internal/utils"
)

const (
	// ResolverName identifies the resolver in chains and errors
	ResolverName = "github"
	// DefaultPriority places the resolver ahead of generic fallbacks
	DefaultPriority = 10
	// DefaultTagWorkers bounds concurrent work during tag discovery
	DefaultTagWorkers = 4

	// archiveFormat is the archive_url format placeholder value
	archiveFormat = "zipball"
	// excludedTag never appears in a discovered tag set
	excludedTag = "status"
	// tagRefPrefix prefixes tag ref names
	tagRefPrefix = "refs/tags/"
	// maxPeelDepth bounds annotated tag chains
	maxPeelDepth = 4
)

// abbreviatedSHA matches commit selectors worth expanding through the API
var abbreviatedSHA = regexp.MustCompile(`^[0-9a-fA-F]{4,39}$`)

// Options tunes the resolver
type Options struct {
	APIURL     string
	WebHost    string
	UserAgent  string
	APIVersion string
	TagWorkers int
	// MaxTagPeels bounds the annotated tags peeled during tag discovery.
	// 0 matches annotated tags on their listed object SHA only.
	MaxTagPeels     int
	TempDir         string
	MaxArchiveBytes int64
	Progress        bool
	ProgressOutput  io.Writer
	Priority        int
}

// Dependencies contains the collaborators of a Resolver
type Dependencies struct {
	HTTPClient *http.Client
	Config     domain.Configuration
	Extractor  domain.Extractor
	Logger     *utils.Logger
	Options    Options
}

// Resolver turns GitHub URLs into snapshots
type Resolver struct {
	parser       *Parser
	client       *Client
	materializer *Materializer
	tagWorkers   int
	maxTagPeels  int
	priority     int
	logger       *utils.Logger
}

// NewResolver creates a new GitHub resolver
func NewResolver(deps Dependencies) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithResolver(ResolverName)

	opts := deps.Options
	if opts.TagWorkers < 1 {
		opts.TagWorkers = DefaultTagWorkers
	}
	if opts.MaxTagPeels < 0 {
		opts.MaxTagPeels = 0
	}
	if opts.Priority == 0 {
		opts.Priority = DefaultPriority
	}

	client := NewClient(ClientOptions{
		HTTPClient: deps.HTTPClient,
		Config:     deps.Config,
		APIURL:     opts.APIURL,
		UserAgent:  opts.UserAgent,
		APIVersion: opts.APIVersion,
		Logger:     logger,
	})

	return &Resolver{
		parser: NewParser(opts.WebHost),
		client: client,
		materializer: NewMaterializer(MaterializerOptions{
			Client:         client,
			Extractor:      deps.Extractor,
			TempDir:        opts.TempDir,
			MaxBytes:       opts.MaxArchiveBytes,
			Progress:       opts.Progress,
			ProgressOutput: opts.ProgressOutput,
			Logger:         logger,
		}),
		tagWorkers:  opts.TagWorkers,
		maxTagPeels: opts.MaxTagPeels,
		priority:    opts.Priority,
		logger:      logger,
	}
}

// Name returns the resolver name
func (r *Resolver) Name() string {
	return ResolverName
}

// Priority returns the chain priority
func (r *Resolver) Priority() int {
	return r.priority
}

// CanHandle reports whether u is a GitHub URL this resolver applies to
func (r *Resolver) CanHandle(u *url.URL) bool {
	return r.parser.Handles(u)
}

// Parser returns the URL classifier
func (r *Resolver) Parser() *Parser {
	return r.parser
}

// Resolve classifies u and resolves the resulting reference
func (r *Resolver) Resolve(ctx context.Context, u *url.URL) (*domain.Snapshot, error) {
	ref, err := r.parser.Classify(u)
	if err != nil {
		return nil, err
	}
	return r.ResolveReference(ctx, ref)
}

// ResolveReference looks up the branch, commit and tags of ref, then
// materializes the commit's archive.
//
// Absent repositories, branches, tags and commits yield errors wrapping
// domain.ErrNotFound. 401 and 403 responses yield domain.ErrUnauthorized and
// domain.ErrForbidden and stop the lookup sequence.
func (r *Resolver) ResolveReference(ctx context.Context, ref Reference) (*domain.Snapshot, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}

	logger := r.logger.WithRepository(ref.Owner, ref.Repository)
	logger.Debug().
		Str("shape", string(ref.Shape)).
		Str("selector", ref.Selector).
		Msg("Resolving reference")

	details, err := r.LookupDetails(ctx, ref.Owner, ref.Repository)
	if err != nil {
		return nil, err
	}

	var (
		branch string
		sha    string
		tags   domain.TagSet
	)
	switch ref.Shape {
	case ShapeRoot:
		branch = details.DefaultBranch
		sha, err = r.LookupBranchSHA(ctx, details, branch)
	case ShapeCommit:
		// The branch containing the commit is not looked up
		branch = details.DefaultBranch
		sha, err = r.ResolveCommitSHA(ctx, ref.Owner, ref.Repository, ref.Selector)
	case ShapeTree:
		branch = ref.Selector
		sha, err = r.LookupBranchSHA(ctx, details, branch)
	case ShapeReleaseTag:
		branch = details.DefaultBranch
		sha, err = r.LookupTagSHA(ctx, ref.Owner, ref.Repository, ref.Selector)
		tags = domain.NewTagSet()
		if ref.Selector != excludedTag {
			tags.Add(ref.Selector)
		}
	}
	if err != nil {
		return nil, err
	}

	archiveURL, err := details.DownloadURL(sha)
	if err != nil {
		return nil, err
	}

	if tags == nil {
		lookup := r.LookupTagsForSHA(ctx, ref.Owner, ref.Repository, sha)
		if lookup.Failed() {
			logger.Warn().
				Err(lookup.Err).
				Int("tags", lookup.Tags.Len()).
				Msg("Tag discovery incomplete")
		}
		tags = lookup.Tags
	}

	logger.Info().
		Str("branch", branch).
		Str("commit", sha).
		Int("tags", tags.Len()).
		Msg("Reference resolved")

	result, err := r.materializer.Materialize(ctx, archiveURL)
	if err != nil {
		return nil, err
	}

	return domain.NewSnapshot(domain.SnapshotParams{
		Owner:      ref.Owner,
		Repository: ref.Repository,
		Branch:     branch,
		Tags:       tags,
		CommitSHA:  sha,
		RootPath:   result.Root,
		OriginURL:  ref.originURL(r.parser.WebHost()),
		WorkDir:    result.WorkDir,
	}), nil
}

// LookupDetails fetches the repository resource and checks its templates
func (r *Resolver) LookupDetails(ctx context.Context, owner, repository string) (*RepositoryDetails, error) {
	target := repositoryTemplate.Expand(r.endpointValues(owner, repository))

	var details RepositoryDetails
	if err := r.client.getJSON(ctx, target, &details); err != nil {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, repository, err)
	}
	if err := details.validate(); err != nil {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, repository, err)
	}
	return &details, nil
}

// LookupBranchSHA returns the head commit of branch. The API must echo the
// requested branch name back, otherwise the branch is treated as absent.
func (r *Resolver) LookupBranchSHA(ctx context.Context, details *RepositoryDetails, branch string) (string, error) {
	target, err := details.BranchURL(branch)
	if err != nil {
		return "", err
	}

	var resp branchResponse
	if err := r.client.getJSON(ctx, target, &resp); err != nil {
		return "", fmt.Errorf("branch %q: %w", branch, err)
	}
	if resp.Name != branch {
		return "", fmt.Errorf("branch %q: %w: api returned %q", branch, domain.ErrNotFound, resp.Name)
	}
	if !plumbing.IsHash(resp.Commit.SHA) {
		return "", fmt.Errorf("branch %q: %w: no commit sha", branch, domain.ErrNotFound)
	}
	return resp.Commit.SHA, nil
}

// LookupTagSHA returns the commit tag points at, peeling annotated tags
func (r *Resolver) LookupTagSHA(ctx context.Context, owner, repository, tag string) (string, error) {
	values := r.endpointValues(owner, repository)
	values["tag"] = tag
	target := tagRefTemplate.Expand(values)

	var resp refResponse
	if err := r.client.getJSON(ctx, target, &resp); err != nil {
		return "", fmt.Errorf("tag %q: %w", tag, err)
	}

	sha, err := r.peel(ctx, owner, repository, resp.Object)
	if err != nil {
		return "", fmt.Errorf("tag %q: %w", tag, err)
	}
	return sha, nil
}

// ResolveCommitSHA returns selector when it is a full SHA and asks the API to
// expand it when it is an abbreviated one. Branch and tag names are not commits.
func (r *Resolver) ResolveCommitSHA(ctx context.Context, owner, repository, selector string) (string, error) {
	if plumbing.IsHash(selector) {
		return selector, nil
	}
	if !abbreviatedSHA.MatchString(selector) {
		return "", fmt.Errorf("commit %q: %w: not a commit sha", selector, domain.ErrNotFound)
	}

	values := r.endpointValues(owner, repository)
	values["ref"] = selector
	sha, err := r.client.getSHA(ctx, commitTemplate.Expand(values))
	if err != nil {
		return "", fmt.Errorf("commit %q: %w", selector, err)
	}
	if !plumbing.IsHash(sha) {
		return "", fmt.Errorf("commit %q: %w: unexpected sha %q", selector, domain.ErrNotFound, sha)
	}
	return sha, nil
}

// LookupTagsForSHA lists the repository's tags and keeps those pointing at sha.
// Entries match on their listed object SHA; at most maxTagPeels annotated tags
// are peeled to their commit, one request per level.
// It never fails: problems are reported through TagLookup.Err.
func (r *Resolver) LookupTagsForSHA(ctx context.Context, owner, repository, sha string) TagLookup {
	target := tagRefsTemplate.Expand(r.endpointValues(owner, repository))

	var refs []refResponse
	if err := r.client.getJSON(ctx, target, &refs); err != nil {
		return TagLookup{Tags: domain.NewTagSet(), Err: err}
	}

	tags := domain.NewTagSet()
	var mu sync.Mutex
	var peeled atomic.Int64

	errs := utils.ParallelForEach(ctx, refs, r.tagWorkers, func(ctx context.Context, entry refResponse) error {
		name := plumbing.ReferenceName(entry.Ref)
		if !name.IsTag() {
			return nil
		}
		tag := strings.TrimPrefix(name.String(), tagRefPrefix)
		if tag == excludedTag {
			return nil
		}

		target := entry.Object.SHA
		if entry.Object.Type == objectTypeTag && peeled.Add(1) <= int64(r.maxTagPeels) {
			var err error
			if target, err = r.peel(ctx, owner, repository, entry.Object); err != nil {
				return fmt.Errorf("tag %q: %w", tag, err)
			}
		}
		if !strings.EqualFold(target, sha) {
			return nil
		}

		mu.Lock()
		tags.Add(tag)
		mu.Unlock()
		return nil
	})

	return TagLookup{Tags: tags, Err: errors.Join(utils.CollectErrors(errs)...)}
}

// peel follows annotated tags down to the object they finally point at
func (r *Resolver) peel(ctx context.Context, owner, repository string, obj gitObject) (string, error) {
	for depth := 0; obj.Type == objectTypeTag; depth++ {
		if depth == maxPeelDepth {
			return "", fmt.Errorf("%w: annotated tag chain too deep", domain.ErrNotFound)
		}

		values := r.endpointValues(owner, repository)
		values["sha"] = obj.SHA

		var tag annotatedTagResponse
		if err := r.client.getJSON(ctx, annotatedTagTemplate.Expand(values), &tag); err != nil {
			return "", err
		}
		obj = tag.Object
	}

	if !plumbing.IsHash(obj.SHA) {
		return "", fmt.Errorf("%w: no object sha", domain.ErrNotFound)
	}
	return obj.SHA, nil
}

func (r *Resolver) endpointValues(owner, repository string) map[string]string {
	return map[string]string{
		"api":   r.client.APIURL(),
		"owner": owner,
		"repo":  repository,
	}
}

func (d *RepositoryDetails) validate() error {
	if d.DefaultBranch == "" {
		return fmt.Errorf("%w: no default branch", domain.ErrNotFound)
	}
	if _, err := d.branchesTemplate(); err != nil {
		return err
	}
	if _, err := d.archiveTemplate(); err != nil {
		return err
	}
	return nil
}

func (d *RepositoryDetails) branchesTemplate() (Template, error) {
	t, err := ParseTemplate(d.BranchesURL)
	if err != nil || !t.Has("branch") {
		return Template{}, fmt.Errorf("%w: unusable branches_url %q", domain.ErrNotFound, d.BranchesURL)
	}
	return t, nil
}

func (d *RepositoryDetails) archiveTemplate() (Template, error) {
	t, err := ParseTemplate(d.ArchiveURL)
	if err != nil || !t.Has("archive_format", "ref") {
		return Template{}, fmt.Errorf("%w: unusable archive_url %q", domain.ErrNotFound, d.ArchiveURL)
	}
	return t, nil
}

// BranchURL expands branches_url for branch
func (d *RepositoryDetails) BranchURL(branch string) (string, error) {
	t, err := d.branchesTemplate()
	if err != nil {
		return "", err
	}
	return t.Expand(map[string]string{"branch": branch}), nil
}

// DownloadURL expands archive_url into the zipball URL of sha
func (d *RepositoryDetails) DownloadURL(sha string) (string, error) {
	t, err := d.archiveTemplate()
	if err != nil {
		return "", err
	}
	return t.Expand(map[string]string{
		"archive_format": archiveFormat,
		"ref":            sha,
	}), nil
}
