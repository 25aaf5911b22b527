package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNotFound is returned when a configuration file does not exist.
	ErrNotFound = errors.New("configuration not found")

	// ErrInvalidConfig is returned when a configuration cannot be parsed or
	// fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// loadConfig reads the file, expands environment references, decodes it
// strictly and validates the result unless told otherwise.
func loadConfig(ctx context.Context, filesystem fs.Filesystem, path string, opts LoadOptions) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := filesystem.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !opts.SkipExpansion {
		data = expandEnv(data)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if !opts.SkipValidation {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected. An empty
// document yields a zero Config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// expandEnv replaces ${NAME} with the value of the environment variable
// NAME. Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envRef.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
