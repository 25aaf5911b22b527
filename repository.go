package gitmirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/input-output-hk/catalyst-forge-libs/gitmirror/internal/fsbridge"
)

// Repository is a local mirror of one branch of one remote. The on-disk store
// and working tree are opened lazily on the first operation that needs them
// and dropped again whenever they can no longer be trusted.
//
// A Repository is not safe for concurrent mutating operations. Callers must
// serialize Update, Add, Remove, Tag and Export.
type Repository struct {
	opts Options
	log  *slog.Logger

	mu sync.Mutex
	h  *handle
}

// handle is an open store plus its working tree.
type handle struct {
	repo  *git.Repository
	wt    *git.Worktree
	fs    billy.Filesystem
	store *filesystem.Storage
}

// New creates a Repository from opts. No disk or network I/O happens until
// the first operation.
func New(opts *Options) (*Repository, error) {
	if opts == nil {
		return nil, WrapError(ErrInvalidOptions, "options are required")
	}

	o := *opts
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.applyDefaults()

	return &Repository{
		opts: o,
		log:  o.Logger.With("workspace", o.Workspace, "branch", o.Branch),
	}, nil
}

// Workspace returns the absolute working directory of the mirror.
func (r *Repository) Workspace() string {
	return r.opts.Workspace
}

// Branch returns the watched branch name.
func (r *Repository) Branch() string {
	return r.opts.Branch
}

// Remote returns the normalized remote URL.
func (r *Repository) Remote() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.Remote
}

// Close releases the open store, if any. The Repository stays usable and
// reopens on the next operation.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropLocked()
}

// handle returns the open store, creating the workspace and initializing
// the store first if needed.
func (r *Repository) handle(ctx context.Context) (*handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.h != nil {
		return r.h, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := r.openOrCreate()
	if err != nil {
		return nil, err
	}
	r.h = h
	return h, nil
}

// invalidate drops the handle so the next operation reopens from disk.
func (r *Repository) invalidate(reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.h == nil {
		return
	}
	r.log.Warn("dropping repository handle", "error", reason)
	_ = r.dropLocked()
}

func (r *Repository) dropLocked() error {
	if r.h == nil {
		return nil
	}
	err := r.h.store.Close()
	r.h = nil
	return err
}

func (r *Repository) openOrCreate() (*handle, error) {
	wfs, err := fsbridge.OpenWorkspace(r.opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkspace, err)
	}

	layout, err := fsbridge.Split(wfs, r.opts.StorerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: access %s: %v", ErrWorkspace, fsbridge.DotGit, err)
	}

	var repo *git.Repository
	if fsbridge.HasStore(wfs) {
		repo, err = git.Open(layout.Store, wfs)
		if err != nil && !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, WrapError(err, "failed to open repository")
		}
	}

	if repo == nil {
		r.log.Debug("initializing store")
		repo, err = git.InitWithOptions(layout.Store, wfs, git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(r.opts.Branch),
		})
		if err != nil {
			return nil, WrapError(err, "failed to initialize repository")
		}
	}

	if err := r.configure(repo); err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &handle{repo: repo, wt: wt, fs: wfs, store: layout.Store}, nil
}

// configure persists the single origin remote and the tracking entry of the
// watched branch. It only writes when the stored configuration differs.
func (r *Repository) configure(repo *git.Repository) error {
	cfg, err := repo.Config()
	if err != nil {
		return WrapError(err, "failed to read repository config")
	}

	branch := r.opts.Branch
	want := &config.RemoteConfig{
		Name:  DefaultRemoteName,
		URLs:  []string{r.opts.Remote},
		Fetch: []config.RefSpec{config.RefSpec(fmt.Sprintf(config.DefaultFetchRefSpec, DefaultRemoteName))},
	}

	changed := false
	for name := range cfg.Remotes {
		if name != DefaultRemoteName {
			delete(cfg.Remotes, name)
			changed = true
		}
	}

	if cur, ok := cfg.Remotes[DefaultRemoteName]; !ok || !sameRemote(cur, want) {
		if ok {
			r.log.Info("relocating remote", "from", cur.URLs, "to", r.opts.Remote)
		}
		cfg.Remotes[DefaultRemoteName] = want
		changed = true
	}

	merge := plumbing.NewBranchReferenceName(branch)
	if b, ok := cfg.Branches[branch]; !ok || b.Remote != DefaultRemoteName || b.Merge != merge {
		cfg.Branches[branch] = &config.Branch{Name: branch, Remote: DefaultRemoteName, Merge: merge}
		changed = true
	}

	if !changed {
		return nil
	}
	if err := repo.SetConfig(cfg); err != nil {
		return WrapError(err, "failed to write repository config")
	}
	return nil
}

func sameRemote(a, b *config.RemoteConfig) bool {
	if len(a.URLs) != len(b.URLs) || len(a.Fetch) != len(b.Fetch) {
		return false
	}
	for i := range a.URLs {
		if a.URLs[i] != b.URLs[i] {
			return false
		}
	}
	for i := range a.Fetch {
		if a.Fetch[i] != b.Fetch[i] {
			return false
		}
	}
	return true
}

// SetRemote points the mirror at a new remote URL. If the store is open its
// persisted origin is rewritten immediately, otherwise on the next open.
func (r *Repository) SetRemote(ctx context.Context, remote string) error {
	if remote == "" {
		return WrapError(ErrInvalidOptions, "remote URL is required")
	}

	r.mu.Lock()
	r.opts.Remote = NormalizeRemoteURL(remote)
	h := r.h
	r.mu.Unlock()

	if h == nil {
		return nil
	}
	return r.configure(h.repo)
}

// headHash resolves HEAD. An unborn HEAD is reported as ok == false. Any
// other failure drops the handle.
func (r *Repository) headHash(h *handle) (plumbing.Hash, bool, error) {
	ref, err := h.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		r.invalidate(err)
		return plumbing.ZeroHash, false, WrapError(err, "failed to resolve HEAD")
	}
	return ref.Hash(), true, nil
}

// Head returns the commit HEAD points at. ok is false while the mirror has no
// commits.
func (r *Repository) Head(ctx context.Context) (CommitRef, bool, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return CommitRef{}, false, err
	}

	hash, ok, err := r.headHash(h)
	if err != nil || !ok {
		return CommitRef{}, false, err
	}

	c, err := h.repo.CommitObject(hash)
	if err != nil {
		r.invalidate(err)
		return CommitRef{}, false, WrapError(err, "failed to read HEAD commit")
	}
	return newCommitRef(c), true, nil
}

// Resolve resolves a revision to a commit. An empty revision means HEAD.
// Branch names, tag names, full or abbreviated hashes and revision
// expressions such as "HEAD~1" are accepted.
func (r *Repository) Resolve(ctx context.Context, rev string) (CommitRef, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return CommitRef{}, err
	}

	c, err := resolveCommit(h, rev)
	if err != nil {
		return CommitRef{}, err
	}
	return newCommitRef(c), nil
}
