package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror"
)

func newUpdateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Synchronize the workspace with the remote branch once",
		Long: `Synchronize the workspace with the remote branch once.

Prints the commits that became reachable from HEAD, newest first.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				return syncOnce(cmd, s)
			})
		},
	}
}

func newWatchCmd(o *rootOptions) *cobra.Command {
	var interval time.Duration
	c := &cobra.Command{
		Use:   "watch",
		Short: "Synchronize the workspace periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				if interval <= 0 {
					interval = s.cfg.Interval().Std()
				}
				s.log.Info("watching remote", "remote", s.repo.Remote(), "interval", interval)

				ticker := time.NewTicker(interval)
				defer ticker.Stop()

				for {
					if err := syncOnce(cmd, s); err != nil {
						s.log.Error("sync failed", "code", gitmirror.CodeOf(err), "error", err)
					}

					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
					}
				}
			})
		},
	}
	c.Flags().DurationVar(&interval, "interval", 0, "poll interval, defaults to pollInterval from the config.")
	return c
}

// syncOnce runs one update and prints the new commits.
func syncOnce(cmd *cobra.Command, s *session) error {
	commits, ok, err := s.repo.Update(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("nothing to mirror", "branch", s.repo.Branch())
		return nil
	}
	printCommits(cmd.OutOrStdout(), commits)
	return nil
}

func newHeadCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the commit checked out in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				head, ok, err := s.repo.Head(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no commit checked out")
				}
				printCommits(cmd.OutOrStdout(), []gitmirror.CommitRef{head})
				return nil
			})
		},
	}
}

func newLogCmd(o *rootOptions) *cobra.Command {
	var from string
	c := &cobra.Command{
		Use:   "log",
		Short: "Print the commits reachable from --rev, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				to, err := s.repo.Resolve(cmd.Context(), o.rev)
				if err != nil {
					return err
				}

				var fromHash *plumbing.Hash
				if from != "" {
					ref, err := s.repo.Resolve(cmd.Context(), from)
					if err != nil {
						return err
					}
					fromHash = &ref.Hash
				}

				commits, err := s.repo.Log(cmd.Context(), fromHash, to.Hash)
				if err != nil {
					return err
				}
				printCommits(cmd.OutOrStdout(), commits)
				return nil
			})
		},
	}
	c.Flags().StringVar(&from, "from", "", "exclude commits reachable from this revision.")
	return c
}

func newCatCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH",
		Short: "Print a file as of --rev",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *session) error {
				data, err := s.repo.Read(cmd.Context(), args[0], o.rev)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

func newExistsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exists PATH",
		Short: "Report whether a file or directory exists as of --rev",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *session) error {
				found, err := s.repo.Exists(cmd.Context(), args[0], o.rev)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), found)
				return nil
			})
		},
	}
}

func newExportCmd(o *rootOptions) *cobra.Command {
	var output string
	c := &cobra.Command{
		Use:   "export",
		Short: "Write the working tree as of --rev as a zip archive",
		Example: `# archive a tagged release
gitmirror --config mirror.yaml --rev v1.2.0 export -o catalog-v1.2.0.zip
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				snap, err := s.repo.Export(cmd.Context(), o.rev)
				if err != nil {
					return err
				}

				if output == "" || output == "-" {
					return snap.WriteZip(cmd.OutOrStdout())
				}

				f, err := os.Create(output)
				if err != nil {
					return err
				}
				if err := snap.WriteZip(f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				s.log.Info("exported snapshot", "commit", snap.Commit.Hash, "output", output)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "-", "archive file, - for stdout.")
	return c
}

func newAddCmd(o *rootOptions) *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "add REPO_PATH=LOCAL_FILE...",
		Short: "Commit local files into the workspace",
		Example: `# replace the index page
gitmirror --config mirror.yaml add -m "docs: update index" docs/index.md=./index.md
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make(map[string][]byte, len(args))
			for _, arg := range args {
				dst, src, ok := strings.Cut(arg, "=")
				if !ok || dst == "" || src == "" {
					return fmt.Errorf("expected REPO_PATH=LOCAL_FILE, got %q", arg)
				}
				data, err := os.ReadFile(src)
				if err != nil {
					return err
				}
				files[dst] = data
			}

			return o.run(cmd, func(s *session) error {
				ref, err := s.repo.Add(cmd.Context(), message, files)
				if err != nil {
					return err
				}
				printCommitted(cmd.OutOrStdout(), ref)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message.")
	_ = c.MarkFlagRequired("message")
	return c
}

func newRmCmd(o *rootOptions) *cobra.Command {
	var message string
	c := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove files or directories from the workspace and commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *session) error {
				ref, err := s.repo.Remove(cmd.Context(), message, args...)
				if err != nil {
					return err
				}
				printCommitted(cmd.OutOrStdout(), ref)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&message, "message", "m", "", "commit message.")
	_ = c.MarkFlagRequired("message")
	return c
}

func newTagCmd(o *rootOptions) *cobra.Command {
	var opts gitmirror.TagOptions
	c := &cobra.Command{
		Use:   "tag NAME",
		Short: "Tag --rev",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *session) error {
				tag, err := s.repo.Tag(cmd.Context(), args[0], o.rev, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", tag.Hash, tag.Name)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&opts.Message, "message", "m", "", "annotation message.")
	c.Flags().BoolVar(&opts.Lightweight, "lightweight", false, "create a lightweight tag.")
	return c
}

func newTagsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags pointing at commits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd, func(s *session) error {
				tags, err := s.repo.Tags(cmd.Context())
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.Target.Hash, t.Name)
				}
				return nil
			})
		},
	}
}

func newResolveTagCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-tag REF",
		Short: "Print the commit a tag or object hash refers to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *session) error {
				commit, ok, err := s.repo.ResolveTag(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s does not refer to a commit", args[0])
				}
				printCommits(cmd.OutOrStdout(), []gitmirror.CommitRef{commit})
				return nil
			})
		},
	}
}

func printCommits(w io.Writer, commits []gitmirror.CommitRef) {
	for _, c := range commits {
		fmt.Fprintf(w, "%s %s\n", c.Hash, c.Subject())
	}
}

func printCommitted(w io.Writer, ref *gitmirror.CommitRef) {
	if ref == nil {
		fmt.Fprintln(w, "nothing to commit")
		return
	}
	printCommits(w, []gitmirror.CommitRef{*ref})
}
