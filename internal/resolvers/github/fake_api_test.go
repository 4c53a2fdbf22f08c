package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/quantmind-br/ghsnap/internal/archive"
	"github.com/quantmind-br/ghsnap/internal/config"
	"github.com/stretchr/testify/require"
)

const (
	headSHA      = "0123456789abcdef0123456789abcdef01234567"
	otherSHA     = "89abcdef0123456789abcdef0123456789abcdef"
	tagObjectSHA = "fedcba9876543210fedcba9876543210fedcba98"

	repoPath = "/repos/acme/widgets"
)

// fakeGitHub serves a small subset of the GitHub REST API for acme/widgets.
// Routes are exact paths; anything unregistered answers 404.
type fakeGitHub struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []*http.Request
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{t: t, routes: map[string]http.HandlerFunc{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)

	f.handle(repoPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{
			"default_branch": "main",
			"branches_url":   f.srv.URL + repoPath + "/branches{/branch}",
			"archive_url":    f.srv.URL + repoPath + "/{archive_format}{/ref}",
		})
	})
	f.branch("main", headSHA)
	f.tagRefs([]refResponse{
		tagRef("v1.0", headSHA, objectTypeCommit),
		tagRef("status", headSHA, objectTypeCommit),
		tagRef("v0.9", otherSHA, objectTypeCommit),
	})
	f.archive(headSHA)
	f.archive(otherSHA)

	return f
}

func (f *fakeGitHub) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(r.Context()))
	handler, ok := f.routes[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	handler(w, r)
}

func (f *fakeGitHub) handle(path string, handler http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = handler
}

func (f *fakeGitHub) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, path)
}

func (f *fakeGitHub) status(path string, code int) {
	f.handle(path, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	})
}

func (f *fakeGitHub) branch(name, sha string) {
	f.handle(repoPath+"/branches/"+name, func(w http.ResponseWriter, r *http.Request) {
		resp := branchResponse{Name: name}
		resp.Commit.SHA = sha
		writeJSON(w, resp)
	})
}

func (f *fakeGitHub) tagRefs(refs []refResponse) {
	f.handle(repoPath+"/git/refs/tags", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, refs)
	})
}

func (f *fakeGitHub) tagRef(ref refResponse) {
	f.handle(repoPath+"/git/ref/tags/"+ref.Ref[len(tagRefPrefix):], func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, ref)
	})
}

func (f *fakeGitHub) annotatedTag(sha string, target gitObject) {
	f.handle(repoPath+"/git/tags/"+sha, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, annotatedTagResponse{Tag: "annotated", Object: target})
	})
}

func (f *fakeGitHub) archive(sha string) {
	body := zipArchive(f.t, "acme-widgets-"+sha[:7], map[string]string{
		"README.md":   "# widgets\n",
		"src/main.go": "package main\n",
	})
	f.handle(repoPath+"/zipball/"+sha, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	})
}

// paths returns the request paths seen so far, in order
func (f *fakeGitHub) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, len(f.requests))
	for i, r := range f.requests {
		paths[i] = r.URL.Path
	}
	return paths
}

func (f *fakeGitHub) request(path string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.URL.Path == path {
			return r
		}
	}
	return nil
}

func (f *fakeGitHub) resolver(opts ...func(*Dependencies)) *Resolver {
	deps := Dependencies{
		HTTPClient: f.srv.Client(),
		Config:     config.MapStore{},
		Extractor:  archive.NewExtractor(archive.ExtractorOptions{}),
		Options: Options{
			APIURL:  f.srv.URL,
			TempDir: f.t.TempDir(),
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewResolver(deps)
}

func tagRef(name, sha, objectType string) refResponse {
	return refResponse{
		Ref:    tagRefPrefix + name,
		Object: gitObject{SHA: sha, Type: objectType},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func zipArchive(t *testing.T, root string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	_, err := zw.Create(root + "/")
	require.NoError(t, err)
	for name, content := range files {
		w, err := zw.Create(fmt.Sprintf("%s/%s", root, name))
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
