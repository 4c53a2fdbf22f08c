package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
)

// TagSet is an unordered set of tag names
type TagSet map[string]struct{}

// NewTagSet creates a TagSet holding the given tags
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, tag := range tags {
		set.Add(tag)
	}
	return set
}

// Add inserts a tag into the set
func (s TagSet) Add(tag string) {
	s[tag] = struct{}{}
}

// Has reports whether the set contains tag
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Len returns the number of tags
func (s TagSet) Len() int {
	return len(s)
}

// Sorted returns the tags in lexical order
func (s TagSet) Sorted() []string {
	tags := make([]string, 0, len(s))
	for tag := range s {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// MarshalJSON encodes the set as a sorted array
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MarshalYAML encodes the set as a sorted sequence
func (s TagSet) MarshalYAML() (interface{}, error) {
	return s.Sorted(), nil
}

// Snapshot is an immutable description of one resolved repository state
// together with the directory its contents were materialized into.
type Snapshot struct {
	Owner      string `json:"owner" yaml:"owner"`
	Repository string `json:"repository" yaml:"repository"`
	Branch     string `json:"branch" yaml:"branch"`
	Tags       TagSet `json:"tags" yaml:"tags"`
	CommitSHA  string `json:"commit_sha" yaml:"commit_sha"`
	RootPath   string `json:"root_path" yaml:"root_path"`
	OriginURL  string `json:"origin_url" yaml:"origin_url"`

	workDir string
}

// SnapshotParams holds the fields required to build a Snapshot
type SnapshotParams struct {
	Owner      string
	Repository string
	Branch     string
	Tags       TagSet
	CommitSHA  string
	RootPath   string
	OriginURL  *url.URL
	// WorkDir is the temporary directory removed by Cleanup. Optional.
	WorkDir string
}

// NewSnapshot builds a Snapshot. A missing field is a programming error and panics.
func NewSnapshot(p SnapshotParams) *Snapshot {
	required := []struct {
		name  string
		value string
	}{
		{"owner", p.Owner},
		{"repository", p.Repository},
		{"branch", p.Branch},
		{"commit sha", p.CommitSHA},
		{"root path", p.RootPath},
	}
	for _, field := range required {
		if field.value == "" {
			panic(fmt.Sprintf("domain: snapshot %s is required", field.name))
		}
	}
	if p.OriginURL == nil {
		panic("domain: snapshot origin url is required")
	}
	if p.Tags == nil {
		panic("domain: snapshot tags are required")
	}

	tags := make(TagSet, len(p.Tags))
	for tag := range p.Tags {
		tags.Add(tag)
	}

	return &Snapshot{
		Owner:      p.Owner,
		Repository: p.Repository,
		Branch:     p.Branch,
		Tags:       tags,
		CommitSHA:  p.CommitSHA,
		RootPath:   p.RootPath,
		OriginURL:  p.OriginURL.String(),
		workDir:    p.WorkDir,
	}
}

// WorkDir returns the temporary directory backing RootPath, if known
func (s *Snapshot) WorkDir() string {
	return s.workDir
}

// Cleanup removes the temporary directory the snapshot was materialized into.
// It is safe to call more than once.
func (s *Snapshot) Cleanup() error {
	if s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}
