package utils

import (
	"net/url"
	"path"
	"strings"
)

// archiveSuffixes are path suffixes of direct archive download links
var archiveSuffixes = []string{".zip", ".tar.gz", ".tgz"}

// PathSegments splits a URL path into its non-empty segments
func PathSegments(u *url.URL) []string {
	if u == nil {
		return nil
	}
	raw := strings.Split(u.Path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// LastPathSegment returns the final non-empty path segment of rawURL
func LastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := PathSegments(u)
	if len(segments) == 0 {
		return ""
	}
	return path.Base(segments[len(segments)-1])
}

// IsArchiveURL reports whether the URL points straight at an archive file
func IsArchiveURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// IsHTTPURL checks if a URL is an absolute HTTP(S) URL
func IsHTTPURL(u *url.URL) bool {
	return u != nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
