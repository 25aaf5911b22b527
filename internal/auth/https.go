package auth

import (
	"fmt"
	"net/url"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPSProvider authenticates https remotes with basic auth.
type HTTPSProvider struct {
	auth *http.BasicAuth

	// AllowedHosts restricts credentials to matching hosts. Empty allows all.
	AllowedHosts []string
}

// NewHTTPSProvider creates a basic auth provider. A lone password is sent as
// the username, which is what most token based hosts expect.
func NewHTTPSProvider(username, password string) *HTTPSProvider {
	if username == "" && password != "" {
		username, password = password, ""
	}
	return &HTTPSProvider{auth: &http.BasicAuth{Username: username, Password: password}}
}

// NewHTTPSTokenProvider creates a provider that sends token as the password.
func NewHTTPSTokenProvider(token string) *HTTPSProvider {
	return &HTTPSProvider{auth: &http.BasicAuth{Username: "token", Password: token}}
}

// WithAllowedHosts sets the allowed host patterns.
func (p *HTTPSProvider) WithAllowedHosts(hosts ...string) *HTTPSProvider {
	p.AllowedHosts = hosts
	return p
}

// Method returns basic auth for https URLs on allowed hosts.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPSProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("https provider cannot authenticate %s URLs", u.Scheme)
	}
	if !hostAllowed(u.Host, p.AllowedHosts) {
		return nil, nil
	}
	return p.auth, nil
}
