package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror"
	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/config"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	repository string
	workspace  string
	branch     string
	recovery   bool
	logLevel   string
	rev        string
	attrs      map[string]string
}

// session is an opened mirror with the configuration it was built from.
type session struct {
	repo *gitmirror.Repository
	cfg  *config.Config
	log  *slog.Logger
}

// NewRootCmd returns the gitmirror command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	c := &cobra.Command{
		Use:   "gitmirror",
		Short: "Mirror one branch of a remote git repository",
		Long: `Mirror one branch of a remote git repository into a local workspace.

Settings are read from a YAML file, by default $XDG_CONFIG_HOME/gitmirror/config.yaml.
Flags override values from the file.
`,
		Example: `# mirror a branch once
gitmirror --repository https://github.com/example/catalog.git --workspace catalog update

# keep polling with settings from a file
gitmirror --config mirror.yaml watch

# print a file as of a tag
gitmirror --config mirror.yaml --rev v1.2.0 cat docs/index.md
`,
		SilenceUsage: true,
	}

	f := c.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "path to the configuration file.")
	f.StringVar(&o.repository, "repository", "", "URL of the remote repository.")
	f.StringVar(&o.workspace, "workspace", "", "working directory of the mirror, relative paths are below the data dir.")
	f.StringVar(&o.branch, "branch", "", "branch to mirror.")
	f.BoolVar(&o.recovery, "recovery", false, "reset the workspace with the git binary when a sync fails.")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error.")
	f.StringVar(&o.rev, "rev", "", "revision to operate on, HEAD if empty.")
	f.StringToStringVar(&o.attrs, "attr", nil, "connector attribute as key=value, may be repeated.")

	c.AddCommand(
		newUpdateCmd(o),
		newWatchCmd(o),
		newHeadCmd(o),
		newLogCmd(o),
		newCatCmd(o),
		newExistsCmd(o),
		newExportCmd(o),
		newAddCmd(o),
		newRmCmd(o),
		newTagCmd(o),
		newTagsCmd(o),
		newResolveTagCmd(o),
	)
	return c
}

// loadConfig reads the configuration file, if any, and applies attribute
// and flag overrides in that order.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		p, err := config.DefaultPath()
		switch {
		case errors.Is(err, config.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			path = p
		}
	}

	cfg := &config.Config{}
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		cfg, err = config.LoadWithOptions(cmd.Context(), fsb.NewOSFS("/"), abs, config.LoadOptions{SkipValidation: true})
		if err != nil {
			return nil, err
		}
	}

	if len(o.attrs) > 0 {
		if err := cfg.ApplyAttributes(o.attrs); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("repository") {
		cfg.Repository = o.repository
	}
	if flags.Changed("workspace") {
		cfg.Workspace = o.workspace
	}
	if flags.Changed("branch") {
		cfg.Branch = o.branch
	}
	if flags.Changed("recovery") {
		cfg.RecoveryFallback = o.recovery
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the configuration and builds the mirror it describes.
func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}

	repo, err := gitmirror.New(opts)
	if err != nil {
		return nil, err
	}

	return &session{repo: repo, cfg: cfg, log: logger}, nil
}

// run opens a session, calls fn with it and closes the mirror afterwards.
func (o *rootOptions) run(cmd *cobra.Command, fn func(s *session) error) error {
	s, err := o.open(cmd)
	if err != nil {
		return err
	}

	err = fn(s)
	if cerr := s.repo.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
