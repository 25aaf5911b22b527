package gitmirror

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// CommitRef describes a commit. Its string form is the commit hash in hex.
type CommitRef struct {
	Hash      plumbing.Hash
	Message   string
	Author    Signature
	Committer Signature
	Parents   []plumbing.Hash

	// Conventional is the parsed conventional-commit header of Message, or
	// nil if the message does not follow that format.
	Conventional *ConventionalHeader
}

// String returns the hex form of the commit hash.
func (c CommitRef) String() string {
	return c.Hash.String()
}

// Subject returns the first line of the commit message.
func (c CommitRef) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// ConventionalHeader is the structured header of a conventional commit.
type ConventionalHeader struct {
	Type        string
	Scope       string
	Description string
	Breaking    bool
}

func newCommitRef(c *object.Commit) CommitRef {
	return CommitRef{
		Hash:         c.Hash,
		Message:      c.Message,
		Author:       Signature{Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When},
		Committer:    Signature{Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When},
		Parents:      append([]plumbing.Hash(nil), c.ParentHashes...),
		Conventional: parseConventional(c.Message),
	}
}

// parseConventional returns nil for messages that are not conventional
// commits. Only the header line and footers are inspected.
func parseConventional(message string) *ConventionalHeader {
	machine := parser.NewMachine(parser.WithTypes(conventionalcommits.TypesConventional))

	msg, err := machine.Parse([]byte(strings.TrimSpace(message)))
	if err != nil || msg == nil {
		return nil
	}

	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok {
		return nil
	}

	header := &ConventionalHeader{
		Type:        cc.Type,
		Description: cc.Description,
		Breaking:    cc.IsBreakingChange(),
	}
	if cc.Scope != nil {
		header.Scope = *cc.Scope
	}
	return header
}
