// Package config loads mirror settings from YAML files and flat attribute
// maps and turns them into gitmirror.Options.
//
// # Basic Usage
//
//	fsys := billy.NewOSFS("/")
//	cfg, err := config.Load(ctx, fsys, "/etc/gitmirror/catalog.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	opts, err := cfg.Options(logger)
//	repo, err := gitmirror.New(opts)
//
// A configuration file looks like this:
//
//	repository: https://github.com/example/catalog.git
//	workspace: catalog
//	branch: main
//	recoveryFallback: true
//	pollInterval: 30s
//	committer:
//	  name: Catalog Bot
//	  email: bot@example.com
//	auth:
//	  token: ${CATALOG_TOKEN}
//
// Values of the form ${NAME} are expanded from the environment.
//
// # Attributes
//
// Connector style attribute maps use the keys repository, workspace,
// branch, submodulesHack and pollInterval:
//
//	err := cfg.ApplyAttributes(map[string]string{
//	    "repository":     "file:/srv/git/catalog",
//	    "submodulesHack": "true",
//	})
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/auth"
)

// DefaultPollInterval is used by watch loops when no interval is configured.
const DefaultPollInterval = time.Minute

// DefaultFileName is the configuration file looked up below the XDG config
// directories.
const DefaultFileName = "gitmirror/config.yaml"

// Config holds the settings of one mirror.
type Config struct {
	// Repository is the remote URL.
	Repository string `yaml:"repository"`

	// Workspace is the local working directory; relative paths are
	// anchored at DataDir.
	Workspace string `yaml:"workspace"`

	// Branch is the watched branch.
	Branch string `yaml:"branch"`

	// RecoveryFallback enables the git reset fallback after failed
	// synchronizations.
	RecoveryFallback bool `yaml:"recoveryFallback"`

	// PollInterval is the period of watch loops.
	PollInterval Duration `yaml:"pollInterval"`

	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Committer Committer   `yaml:"committer"`
	Auth      auth.Config `yaml:"auth"`
}

// Committer is the identity used for commits and tags made by the mirror.
type Committer struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// LoadOptions configures the behavior of configuration loading operations.
type LoadOptions struct {
	// SkipValidation disables automatic validation after loading.
	SkipValidation bool

	// SkipExpansion leaves ${NAME} references untouched.
	SkipExpansion bool
}

// Load reads, expands and validates the configuration file at path.
func Load(ctx context.Context, filesystem fs.Filesystem, path string) (*Config, error) {
	return loadConfig(ctx, filesystem, path, LoadOptions{})
}

// LoadWithOptions reads the configuration file at path with custom options.
func LoadWithOptions(ctx context.Context, filesystem fs.Filesystem, path string, opts LoadOptions) (*Config, error) {
	return loadConfig(ctx, filesystem, path, opts)
}

// DefaultPath returns the first gitmirror/config.yaml found in the XDG
// config directories.
func DefaultPath() (string, error) {
	p, err := xdg.SearchConfigFile(DefaultFileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return p, nil
}

// Duration is a time.Duration that accepts Go duration strings ("90s",
// "5m") or a bare number of seconds.
type Duration time.Duration

// ParseDuration parses s as a Go duration or a number of seconds.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}
		return Duration(time.Duration(secs * float64(time.Second))), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return Duration(d), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
