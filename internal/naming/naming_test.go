package naming

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeDNS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already clean",
			input:    "my-repo",
			expected: "my-repo",
		},
		{
			name:     "uppercase lowered",
			input:    "MyRepo",
			expected: "myrepo",
		},
		{
			name:     "special characters replaced",
			input:    "my_repo.name",
			expected: "my-repo-name",
		},
		{
			name:     "dash runs collapsed",
			input:    "my__repo..name",
			expected: "my-repo-name",
		},
		{
			name:     "leading and trailing dashes trimmed",
			input:    ".my-repo.",
			expected: "my-repo",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "only invalid characters",
			input:    "...",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SanitizeDNS(tt.input))
		})
	}
}

func TestRepoBaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "https url",
			url:      "https://github.com/acme/My_Service.git",
			expected: "my-service",
		},
		{
			name:     "scp style url",
			url:      "git@github.com:acme/widgets.git",
			expected: "widgets",
		},
		{
			name:     "trailing slash",
			url:      "https://git.example.com/team/tool.git/",
			expected: "tool",
		},
		{
			name:     "no git suffix",
			url:      "https://git.example.com/team/tool",
			expected: "tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, RepoBaseName(tt.url))
		})
	}
}

func TestDerivePVCPath(t *testing.T) {
	t.Parallel()

	path := DerivePVCPath("https://github.com/acme/widgets.git", "0123456789abcdef0123456789abcdef01234567")
	assert.Equal(t, "widgets-0123456789ab", path)

	// Short commit IDs are used whole.
	path = DerivePVCPath("https://github.com/acme/widgets.git", "abc123")
	assert.Equal(t, "widgets-abc123", path)

	// Derivation is stable.
	again := DerivePVCPath("https://github.com/acme/widgets.git", "abc123")
	assert.Equal(t, path, again)
}

func TestCloneJobName(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)

	name := CloneJobName("https://github.com/acme/widgets.git", "abc123", now)
	assert.True(t, strings.HasPrefix(name, "fetch-widgets-1700000000000-"))
	assert.LessOrEqual(t, len(name), 63)

	// Distinct URLs with the same base name produce distinct names.
	other := CloneJobName("https://gitlab.com/other/widgets.git", "abc123", now)
	assert.NotEqual(t, name, other)

	// Long repository names are shortened, never dropped entirely.
	long := CloneJobName("https://github.com/acme/"+strings.Repeat("x", 100)+".git", "abc123", now)
	assert.LessOrEqual(t, len(long), 63)
	require.True(t, strings.HasPrefix(long, "fetch-x"))
}

func TestCleanupJobName(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)

	name := CleanupJobName("widgets-0123456789ab", now)
	assert.Equal(t, "cleanup-widgets-0123456789ab-1700000000000", name)

	long := CleanupJobName(strings.Repeat("y", 100), now)
	assert.LessOrEqual(t, len(long), 63)
	assert.True(t, strings.HasPrefix(long, "cleanup-y"))
}
