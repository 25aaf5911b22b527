package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	gossh "golang.org/x/crypto/ssh"
)

// SSHProvider authenticates ssh remotes with a key file, in-memory key bytes
// or the running ssh-agent.
type SSHProvider struct {
	KeyPath    string
	Key        []byte
	Passphrase string
	UseAgent   bool

	// Username defaults to "git".
	Username string

	// HostKeyCallback verifies the server key. Nil leaves go-git's default
	// known_hosts verification in place.
	HostKeyCallback gossh.HostKeyCallback

	// AllowedHosts restricts credentials to matching hosts. Empty allows all.
	AllowedHosts []string
}

// NewSSHKeyProvider creates a provider using a private key file.
func NewSSHKeyProvider(keyPath, passphrase string) *SSHProvider {
	return &SSHProvider{KeyPath: keyPath, Passphrase: passphrase, Username: "git"}
}

// NewSSHKeyBytesProvider creates a provider using private key bytes.
func NewSSHKeyBytesProvider(key []byte, passphrase string) *SSHProvider {
	return &SSHProvider{Key: key, Passphrase: passphrase, Username: "git"}
}

// NewSSHAgentProvider creates a provider that uses the ssh-agent.
func NewSSHAgentProvider() *SSHProvider {
	return &SSHProvider{UseAgent: true, Username: "git"}
}

// WithHostKeyCallback sets the host key verification callback.
func (p *SSHProvider) WithHostKeyCallback(cb gossh.HostKeyCallback) *SSHProvider {
	p.HostKeyCallback = cb
	return p
}

// WithInsecureHostKey disables host key verification.
func (p *SSHProvider) WithInsecureHostKey() *SSHProvider {
	//nolint:gosec // explicitly requested by configuration
	p.HostKeyCallback = gossh.InsecureIgnoreHostKey()
	return p
}

// WithKnownHosts verifies server keys against the given known_hosts files.
func (p *SSHProvider) WithKnownHosts(files ...string) (*SSHProvider, error) {
	cb, err := ssh.NewKnownHostsCallback(files...)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}
	p.HostKeyCallback = cb
	return p, nil
}

// WithAllowedHosts sets the allowed host patterns.
func (p *SSHProvider) WithAllowedHosts(hosts ...string) *SSHProvider {
	p.AllowedHosts = hosts
	return p
}

// Method returns ssh auth for ssh URLs on allowed hosts.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *SSHProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	scheme, err := Scheme(remoteURL)
	if err != nil {
		return nil, err
	}
	if scheme != "ssh" {
		return nil, fmt.Errorf("ssh provider cannot authenticate %s URLs", scheme)
	}
	if !hostAllowed(sshHost(remoteURL), p.AllowedHosts) {
		return nil, nil
	}

	user := p.Username
	if user == "" {
		user = "git"
	}

	switch {
	case p.UseAgent:
		a, err := ssh.NewSSHAgentAuth(user)
		if err != nil {
			return nil, fmt.Errorf("ssh agent auth: %w", err)
		}
		if p.HostKeyCallback != nil {
			a.HostKeyCallback = p.HostKeyCallback
		}
		return a, nil
	case p.KeyPath != "":
		if _, err := os.Stat(p.KeyPath); err != nil {
			return nil, fmt.Errorf("ssh private key %s: %w", p.KeyPath, err)
		}
		k, err := ssh.NewPublicKeysFromFile(user, p.KeyPath, p.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("load ssh key from file: %w", err)
		}
		if p.HostKeyCallback != nil {
			k.HostKeyCallback = p.HostKeyCallback
		}
		return k, nil
	case len(p.Key) > 0:
		k, err := ssh.NewPublicKeys(user, p.Key, p.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("load ssh key: %w", err)
		}
		if p.HostKeyCallback != nil {
			k.HostKeyCallback = p.HostKeyCallback
		}
		return k, nil
	}

	return nil, errors.New("no ssh credentials configured")
}

func sshHost(remoteURL string) string {
	if isSCPLike(remoteURL) {
		rest := remoteURL[strings.Index(remoteURL, "@")+1:]
		host, _, _ := strings.Cut(rest, ":")
		return host
	}
	u, err := url.Parse(remoteURL)
	if err != nil {
		return ""
	}
	return u.Host
}
