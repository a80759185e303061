// Package naming derives DNS-safe identifiers for clone directories and
// backend work items from repository URLs and commit IDs.
package naming

import (
	//nolint:gosec // G505: SHA-1 keeps job names short; not used for security
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// maxNameLength is the Kubernetes object name limit (DNS label, RFC 1123).
const maxNameLength = 63

// commitSuffixLength is how much of the commit ID goes into the clone
// directory name.
const commitSuffixLength = 12

var (
	invalidDNSChars = regexp.MustCompile(`[^a-z0-9-]`)
	dashRuns        = regexp.MustCompile(`-+`)
)

// SanitizeDNS lowercases the name, replaces every character outside
// [a-z0-9-] with a dash, collapses dash runs and trims leading and
// trailing dashes.
func SanitizeDNS(name string) string {
	s := strings.ToLower(name)
	s = invalidDNSChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// RepoBaseName extracts the final path segment of a repository URL,
// drops the ".git" suffix and sanitizes the rest. Works for both URL
// style (https://host/org/repo.git) and scp style (git@host:org/repo.git)
// addresses.
func RepoBaseName(repoURL string) string {
	trimmed := strings.TrimRight(repoURL, "/")
	seg := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		seg = trimmed[i+1:]
	}
	seg = strings.TrimSuffix(seg, ".git")
	return SanitizeDNS(seg)
}

// DerivePVCPath returns the clone directory name for a repository pinned
// to a commit: the sanitized repository base name plus a short commit
// suffix. The pair (URL, commit) always derives the same path.
func DerivePVCPath(repoURL, commitID string) string {
	short := commitID
	if len(short) > commitSuffixLength {
		short = short[:commitSuffixLength]
	}
	return RepoBaseName(repoURL) + "-" + short
}

// CloneJobName builds a unique work item name for a clone task:
// fetch-<repo>-<unix millis>-<hash>, where the hash covers the full URL
// and commit so repositories with identical base names stay distinct.
// The repository part is shortened as needed to stay within the 63
// character object name limit.
func CloneJobName(repoURL, commitID string, now time.Time) string {
	repo := RepoBaseName(repoURL)
	ts := now.UnixMilli()

	//nolint:gosec // G401: name uniqueness only, not used for security
	sum := sha1.Sum([]byte(repoURL + ":" + commitID))
	hash := hex.EncodeToString(sum[:])[:8]

	name := fmt.Sprintf("fetch-%s-%d-%s", repo, ts, hash)
	if len(name) > maxNameLength {
		keep := len(repo) - (len(name) - maxNameLength)
		if keep < 1 {
			keep = 1
		}
		name = fmt.Sprintf("fetch-%s-%d-%s", repo[:keep], ts, hash)
	}
	return name
}

// CleanupJobName builds a unique work item name for a removal task based
// on the clone directory being deleted.
func CleanupJobName(pvcPath string, now time.Time) string {
	path := SanitizeDNS(pvcPath)
	ts := now.UnixMilli()

	name := fmt.Sprintf("cleanup-%s-%d", path, ts)
	if len(name) > maxNameLength {
		keep := len(path) - (len(name) - maxNameLength)
		if keep < 1 {
			keep = 1
		}
		name = fmt.Sprintf("cleanup-%s-%d", path[:keep], ts)
	}
	return name
}
