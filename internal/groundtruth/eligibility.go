package groundtruth

import (
	"path"
	"strings"
)

// excludedDirs mirrors the path blacklist carried over from the
// original benchmark's filters package, generalized from its
// Python/docs-site defaults to this repository's Go focus.
var excludedDirs = []string{
	"tests/",
	"test/",
	"docs/",
	"doc/",
	".github/",
	".circleci/",
	"vendor/",
	"testdata/",
}

// excludedExtensions are documentation or configuration file types that
// never carry function-anchored ground truth.
var excludedExtensions = map[string]struct{}{
	".md":         {},
	".rst":        {},
	".txt":        {},
	".yaml":       {},
	".yml":        {},
	".json":       {},
	".toml":       {},
	".lock":       {},
	".png":        {},
	".svg":        {},
	".gitignore":  {},
}

// eligibleExtensions is the language-extension allowlist for the
// configured AST parser. codelocbench is configured for Go, matching
// the one language the teacher's own extractor parses.
var eligibleExtensions = map[string]struct{}{
	".go": {},
}

// Eligible reports whether p (repo-relative, already path-normalized)
// qualifies for ground-truth extraction: its extension is in the
// language allowlist, it is not under an excluded directory, and it is
// not a recognized documentation/configuration extension. Every path
// is either eligible or excluded — the two sets are disjoint by
// construction, since eligibility is a single boolean function of p.
func Eligible(p string) bool {
	if p == "" {
		return false
	}

	lower := strings.ToLower(p)
	for _, dir := range excludedDirs {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return false
		}
	}

	ext := strings.ToLower(path.Ext(p))
	if _, excluded := excludedExtensions[ext]; excluded {
		return false
	}

	_, ok := eligibleExtensions[ext]
	return ok
}

// FilterEligible partitions changed into eligible and excluded paths,
// returning only the eligible subset (the form GroundTruthBuilder
// needs); callers that need the excluded set for diagnostics can
// recompute it with Eligible directly.
func FilterEligible(changed map[string][]int) map[string][]int {
	out := make(map[string][]int, len(changed))
	for p, lines := range changed {
		if Eligible(p) {
			out[p] = lines
		}
	}
	return out
}
