package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror"
	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/auth"
)

// Validate checks that c describes a usable mirror. All problems are
// reported together.
func (c *Config) Validate() error {
	var problems []string

	if c.Repository == "" {
		problems = append(problems, "repository is required")
	} else if _, err := auth.Scheme(c.Repository); err != nil {
		problems = append(problems, fmt.Sprintf("repository: %v", err))
	}

	if c.Workspace == "" {
		problems = append(problems, "workspace is required")
	}

	if c.PollInterval < 0 {
		problems = append(problems, "pollInterval cannot be negative")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Auth.Token != "" && c.Auth.Password != "" {
		problems = append(problems, "auth: token and password are mutually exclusive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logLevel: unknown level %q", name)
	}
	return level, nil
}

// Interval returns the poll interval, or DefaultPollInterval if unset.
func (c *Config) Interval() Duration {
	if c.PollInterval <= 0 {
		return Duration(DefaultPollInterval)
	}
	return c.PollInterval
}

// Options converts c into gitmirror.Options. Credentials are resolved into
// an auth chain; logger may be nil.
func (c *Config) Options(logger *slog.Logger) (*gitmirror.Options, error) {
	opts := &gitmirror.Options{
		Workspace: c.Workspace,
		DataDir:   c.DataDir,
		Remote:    c.Repository,
		Branch:    c.Branch,
		Recovery:  c.RecoveryFallback,
		Committer: gitmirror.Signature{Name: c.Committer.Name, Email: c.Committer.Email},
		Logger:    logger,
	}

	chain, err := auth.FromConfig(c.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: auth: %v", ErrInvalidConfig, err)
	}
	if chain != nil {
		opts.Auth = chain
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return opts, nil
}
