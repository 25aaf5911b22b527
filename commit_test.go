package gitmirror

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
)

func TestParseConventional(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    *ConventionalHeader
	}{
		{
			name:    "type and description",
			message: "fix: handle empty remotes",
			want:    &ConventionalHeader{Type: "fix", Description: "handle empty remotes"},
		},
		{
			name:    "scope and body",
			message: "feat(sync): add recovery\n\nResets the workspace with git.\n",
			want:    &ConventionalHeader{Type: "feat", Scope: "sync", Description: "add recovery"},
		},
		{
			name:    "breaking marker",
			message: "refactor(api)!: rename Update",
			want:    &ConventionalHeader{Type: "refactor", Scope: "api", Description: "rename Update", Breaking: true},
		},
		{
			name:    "plain message",
			message: "Initial commit",
		},
		{
			name:    "unknown type",
			message: "wip: half done",
		},
		{
			name:    "empty",
			message: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseConventional(tt.message))
		})
	}
}

func TestCommitRef(t *testing.T) {
	ref := CommitRef{
		Hash:    plumbing.NewHash("0123456789abcdef0123456789abcdef01234567"),
		Message: "  docs: first line  \nsecond line\n",
	}

	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", ref.String())
	assert.Equal(t, "docs: first line", ref.Subject())
	assert.Equal(t, "", CommitRef{}.Subject())
}
