package auth

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Chain dispatches to a provider per URL scheme. Local file remotes and
// schemes without a registered provider get no credentials.
type Chain struct {
	byScheme map[string]Provider
}

// NewChain creates an empty Chain.
func NewChain() *Chain {
	return &Chain{byScheme: make(map[string]Provider)}
}

// Register sets the provider for scheme, replacing any previous one.
func (c *Chain) Register(scheme string, p Provider) *Chain {
	c.byScheme[scheme] = p
	return c
}

// Len returns the number of registered schemes.
func (c *Chain) Len() int {
	return len(c.byScheme)
}

// Method resolves the AuthMethod for remoteURL.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (c *Chain) Method(remoteURL string) (transport.AuthMethod, error) {
	scheme, err := Scheme(remoteURL)
	if err != nil {
		return nil, err
	}
	if scheme == "file" {
		return nil, nil
	}

	p, ok := c.byScheme[scheme]
	if !ok {
		return nil, nil
	}

	m, err := p.Method(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("%s credentials: %w", scheme, err)
	}
	return m, nil
}

// Config describes credentials as they appear in configuration files.
type Config struct {
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	Token        string   `yaml:"token"`
	SSHKeyPath   string   `yaml:"sshKeyPath"`
	SSHPassword  string   `yaml:"sshPassphrase"`
	SSHAgent     bool     `yaml:"sshAgent"`
	KnownHosts   []string `yaml:"knownHosts"`
	InsecureSSH  bool     `yaml:"insecureIgnoreHostKey"`
	AllowedHosts []string `yaml:"allowedHosts"`
}

// Empty reports whether no credentials are configured.
func (c Config) Empty() bool {
	return c.Username == "" && c.Password == "" && c.Token == "" &&
		c.SSHKeyPath == "" && !c.SSHAgent
}

// FromConfig builds a Chain from cfg. It returns nil when cfg is empty.
func FromConfig(cfg Config) (*Chain, error) {
	if cfg.Empty() {
		return nil, nil
	}

	chain := NewChain()

	switch {
	case cfg.Token != "":
		chain.Register("https", NewHTTPSTokenProvider(cfg.Token).WithAllowedHosts(cfg.AllowedHosts...))
	case cfg.Username != "" || cfg.Password != "":
		chain.Register("https", NewHTTPSProvider(cfg.Username, cfg.Password).WithAllowedHosts(cfg.AllowedHosts...))
	}

	var sshp *SSHProvider
	switch {
	case cfg.SSHAgent:
		sshp = NewSSHAgentProvider()
	case cfg.SSHKeyPath != "":
		sshp = NewSSHKeyProvider(cfg.SSHKeyPath, cfg.SSHPassword)
	}
	if sshp != nil {
		if cfg.Username != "" {
			sshp.Username = cfg.Username
		}
		sshp.WithAllowedHosts(cfg.AllowedHosts...)
		switch {
		case cfg.InsecureSSH:
			sshp.WithInsecureHostKey()
		case len(cfg.KnownHosts) > 0:
			if _, err := sshp.WithKnownHosts(cfg.KnownHosts...); err != nil {
				return nil, err
			}
		}
		chain.Register("ssh", sshp)
	}

	return chain, nil
}
