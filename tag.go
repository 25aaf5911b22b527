package gitmirror

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// TagOptions configures tag creation.
type TagOptions struct {
	// Message is the annotation of an annotated tag.
	// Defaults to "tag <name>".
	Message string

	// Lightweight creates a plain reference instead of a tag object.
	Lightweight bool
}

// TagRef describes a tag. Hash is the tag object for annotated tags and the
// commit for lightweight ones. Its string form is Hash in hex.
type TagRef struct {
	Name   string
	Hash   plumbing.Hash
	Target CommitRef
}

// String returns the hex form of the tag hash.
func (t TagRef) String() string {
	return t.Hash.String()
}

// Tag creates the tag name at rev. An empty rev means HEAD. An existing tag
// of the same name is never replaced; the call fails with ErrTagExists.
func (r *Repository) Tag(ctx context.Context, name, rev string, opts TagOptions) (TagRef, error) {
	if name == "" {
		return TagRef{}, WrapError(ErrInvalidRef, "tag name is required")
	}
	refName := plumbing.NewTagReferenceName(name)
	if err := refName.Validate(); err != nil {
		return TagRef{}, WrapErrorf(ErrInvalidRef, "tag %q: %v", name, err)
	}

	h, err := r.handle(ctx)
	if err != nil {
		return TagRef{}, err
	}

	c, err := resolveCommit(h, rev)
	if err != nil {
		return TagRef{}, err
	}

	if _, err := h.repo.Storer.Reference(refName); err == nil {
		return TagRef{}, WrapErrorf(ErrTagExists, "%s", name)
	}

	var createOpts *git.CreateTagOptions
	if !opts.Lightweight {
		msg := opts.Message
		if msg == "" {
			msg = "tag " + name
		}
		createOpts = &git.CreateTagOptions{Tagger: r.signature(), Message: msg}
	}

	ref, err := h.repo.CreateTag(name, c.Hash, createOpts)
	if errors.Is(err, git.ErrTagExists) {
		return TagRef{}, WrapErrorf(ErrTagExists, "%s", name)
	}
	if err != nil {
		return TagRef{}, WrapErrorf(err, "failed to create tag %s", name)
	}

	r.log.InfoContext(ctx, "created tag", "tag", name, "commit", c.Hash.String(), "annotated", !opts.Lightweight)
	return TagRef{Name: name, Hash: ref.Hash(), Target: newCommitRef(c)}, nil
}

// ResolveTag dereferences ref to the commit it names. ref is a tag name or
// the hex hash of a tag or commit object. ok is false when the object exists
// but is not a commit and not an annotated tag of one. An unknown ref fails
// with ErrTagMissing.
func (r *Repository) ResolveTag(ctx context.Context, ref string) (CommitRef, bool, error) {
	if ref == "" {
		return CommitRef{}, false, WrapError(ErrInvalidRef, "tag is required")
	}

	h, err := r.handle(ctx)
	if err != nil {
		return CommitRef{}, false, err
	}

	var hash plumbing.Hash
	if tagRef, err := h.repo.Reference(plumbing.NewTagReferenceName(ref), true); err == nil {
		hash = tagRef.Hash()
	} else if plumbing.IsHash(ref) {
		hash = plumbing.NewHash(ref)
	} else {
		return CommitRef{}, false, WrapErrorf(ErrTagMissing, "%s", ref)
	}

	obj, err := h.repo.Object(plumbing.AnyObject, hash)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return CommitRef{}, false, WrapErrorf(ErrTagMissing, "%s", ref)
	}
	if err != nil {
		return CommitRef{}, false, WrapErrorf(err, "failed to read %s", ref)
	}

	switch o := obj.(type) {
	case *object.Commit:
		return newCommitRef(o), true, nil
	case *object.Tag:
		if o.TargetType != plumbing.CommitObject {
			return CommitRef{}, false, nil
		}
		c, err := o.Commit()
		if err != nil {
			return CommitRef{}, false, WrapErrorf(err, "failed to read target of %s", ref)
		}
		return newCommitRef(c), true, nil
	default:
		return CommitRef{}, false, nil
	}
}

// Tags lists the tags pointing at commits, sorted by name.
func (r *Repository) Tags(ctx context.Context) ([]TagRef, error) {
	h, err := r.handle(ctx)
	if err != nil {
		return nil, err
	}

	iter, err := h.repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	defer iter.Close()

	var tags []TagRef
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := peelToCommit(h, ref.Hash())
		if errors.Is(err, plumbing.ErrInvalidType) {
			return nil
		}
		if err != nil {
			return WrapErrorf(err, "failed to peel %s", ref.Name())
		}
		tags = append(tags, TagRef{Name: ref.Name().Short(), Hash: ref.Hash(), Target: newCommitRef(c)})
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, err
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}
