// Package github resolves GitHub web URLs into source snapshots.
//
// A URL goes through three stages:
//   - Parser: classifies the URL path into a Reference (root, commit, tree or release tag)
//   - Resolver: turns the Reference into a branch, a full commit SHA and a tag set
//     using the GitHub REST API
//   - Materializer: downloads the zipball for the commit and hands it to a
//     domain.Extractor, which returns the snapshot root directory
//
// Usage:
//
//	resolver := github.NewResolver(github.Dependencies{
//	    HTTPClient: client,
//	    Config:     store,
//	    Extractor:  archive.NewExtractor(archive.ExtractorOptions{}),
//	})
//	if resolver.CanHandle(u) {
//	    snapshot, err := resolver.Resolve(ctx, u)
//	}
package github
