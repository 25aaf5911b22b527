// Package auth resolves credentials for the mirror's single remote. Providers
// return go-git transport.AuthMethod values selected by URL scheme and host.
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Provider returns the AuthMethod for a remote URL, or nil when the URL
// needs no credentials from this provider.
type Provider interface {
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Scheme classifies a remote URL as "file", "https", "http" or "ssh".
// scp-like addresses (user@host:path) are reported as "ssh".
func Scheme(remoteURL string) (string, error) {
	if isSCPLike(remoteURL) {
		return "ssh", nil
	}

	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "", "file":
		return "file", nil
	case "ssh", "git+ssh", "git":
		return "ssh", nil
	default:
		return u.Scheme, nil
	}
}

func isSCPLike(remoteURL string) bool {
	if strings.Contains(remoteURL, "://") {
		return false
	}
	at := strings.Index(remoteURL, "@")
	colon := strings.Index(remoteURL, ":")
	return at > 0 && colon > at
}

// matchesPattern checks if a host matches a pattern with one "*" wildcard
// at either end.
func matchesPattern(host, pattern string) bool {
	if host == pattern {
		return true
	}

	if strings.Count(pattern, "*") != 1 {
		return false
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}

	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(host, prefix+".")
	}

	return false
}

func hostAllowed(host string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, p := range patterns {
		if matchesPattern(host, p) {
			return true
		}
	}
	return false
}
