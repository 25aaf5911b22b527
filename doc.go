// Package gitmirror keeps a local working copy of one branch of a remote git
// repository and answers content queries against it.
//
// A Repository owns a workspace directory with an embedded object store. The
// first Update fetches the remote and checks out the tip of the watched
// branch; later updates pull fast-forward only and report the commits that
// became reachable from HEAD. Files can be read or checked for existence at
// any revision, exported as a snapshot, changed with commits of their own and
// tagged.
//
// # Basic Usage
//
//	repo, err := gitmirror.New(&gitmirror.Options{
//	    Workspace: "catalog",
//	    Remote:    "https://github.com/example/catalog.git",
//	    Branch:    "main",
//	    Recovery:  true,
//	})
//
//	commits, ok, err := repo.Update(ctx)
//	if err != nil {
//	    return err
//	}
//	if !ok {
//	    // branch not present on the remote yet
//	}
//	for _, c := range commits {
//	    fmt.Println(c.Hash, c.Subject())
//	}
//
// A relative Workspace is resolved below Options.DataDir, which defaults to
// $XDG_DATA_HOME/gitmirror.
//
// # Reading Content
//
// An empty revision always means HEAD:
//
//	data, err := repo.Read(ctx, "docs/index.md", "")
//	found, err := repo.Exists(ctx, "docs", "v1.2.0")
//
//	snap, err := repo.Export(ctx, "HEAD~3")
//	err = snap.WriteZip(w)
//
// Exporting a revision other than HEAD switches the working directory to it
// and back. Local modifications are discarded in the process.
//
// # Making Changes
//
//	ref, err := repo.Add(ctx, "docs: update index", map[string][]byte{
//	    "docs/index.md": []byte("# Catalog\n"),
//	})
//	ref, err = repo.Remove(ctx, "docs: drop drafts", "docs/drafts")
//	tag, err := repo.Tag(ctx, "v1.3.0", "", gitmirror.TagOptions{})
//
// # Recovery
//
// When Options.Recovery is set, a failed synchronization falls back to the
// git binary: a stale index lock is removed and the workspace is reset hard
// to the fetched tip of the branch. The reset is delegated through
// Options.Git so tests can substitute it.
//
// # Error Handling
//
// Failures wrap sentinel errors:
//
//	_, err := repo.Tag(ctx, "v1.3.0", "", gitmirror.TagOptions{})
//	if errors.Is(err, gitmirror.ErrTagExists) {
//	    // tag names are never reused
//	}
//
// CodeOf maps any error to a stable ErrorCode for transport layers.
//
// # Thread Safety
//
// A Repository is NOT safe for concurrent mutating operations. Update, Add,
// Remove, Tag and Export must be serialized by the caller. Read and Exists
// at fixed revisions may run concurrently with each other.
package gitmirror
