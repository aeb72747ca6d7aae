// Package paths normalizes file paths returned by a search harness and by
// dataset ground truth into a single comparable form, so that matching
// between the two never depends on incidental prefix or separator noise.
package paths

import (
	"path"
	"strings"
)

// Normalize reduces p to a POSIX-style path relative to repoRoot: it
// strips a leading "./", a leading git-diff "a/" or "b/" prefix, strips
// repoRoot itself if p happens to be absolute or already rooted at it,
// converts backslashes to forward slashes, and collapses "." / ".."
// segments via path.Clean. Matching downstream is exact-string only —
// Normalize never resolves symlinks or consults the filesystem.
func Normalize(p, repoRoot string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")

	if repoRoot != "" {
		root := strings.ReplaceAll(strings.TrimSpace(repoRoot), "\\", "/")
		root = strings.TrimSuffix(root, "/")
		if root != "" {
			if rel := strings.TrimPrefix(p, root+"/"); rel != p {
				p = rel
			} else if p == root {
				p = ""
			}
		}
	}

	p = strings.TrimPrefix(p, "a/")
	p = strings.TrimPrefix(p, "b/")
	p = strings.TrimPrefix(p, "/")

	if p == "" || p == "." {
		return ""
	}
	return path.Clean(p)
}

// NormalizeAll applies Normalize to every entry in ps, dropping any that
// normalize to empty, and returns the result in its original order
// (duplicates are not collapsed; callers that need a set should build
// one from the result).
func NormalizeAll(ps []string, repoRoot string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		n := Normalize(p, repoRoot)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Match returns the exact-string intersection of two normalized path
// sets, expressed as a set (map to struct{}) since callers only ever
// need membership and a count. Matching never falls back to basename
// comparison: "pkg/foo.go" and "other/foo.go" are never considered the
// same file.
func Match(groundTruth, returned []string) map[string]struct{} {
	gtSet := make(map[string]struct{}, len(groundTruth))
	for _, p := range groundTruth {
		gtSet[p] = struct{}{}
	}

	matched := make(map[string]struct{})
	for _, p := range returned {
		if _, ok := gtSet[p]; ok {
			matched[p] = struct{}{}
		}
	}
	return matched
}

// ToSet is a small helper shared by callers that need set semantics
// over an already-normalized path slice without going through Match.
func ToSet(ps []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ps))
	for _, p := range ps {
		set[p] = struct{}{}
	}
	return set
}
