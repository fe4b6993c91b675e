// Package matching reconciles the two independently derived company
// identifiers: the free-text company name a synthesized profile carries
// and the filesystem-safe key the ingestion pipeline persisted under.
package matching

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// MinSimilarity is the acceptance threshold for a fuzzy match.
const MinSimilarity = 0.6

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

var legalSuffixes = []string{"-gmbh", "-mbh", "-ag", "-kg", "-ug", "-inc", "-ltd"}

// NormalizeKey makes two differently styled identifiers comparable:
// lower-case, underscores and spaces become hyphens, German umlauts are
// transliterated, and one trailing legal-entity suffix is stripped.
func NormalizeKey(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, " ", "-")
	name = umlauts.Replace(name)
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	return strings.Trim(name, "-")
}

// Similarity is a sequence-similarity ratio in [0, 1] based on the
// Levenshtein distance of the two strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// Resolve finds the candidate key matching expected, in its original form.
// Exact matches on the normalized forms win outright; otherwise the single
// best candidate with similarity >= MinSimilarity is returned. Ties are
// broken by the lexicographically smallest normalized candidate so the
// result is stable across runs. The boolean is false when nothing matches,
// which is a valid "unknown association", not an error.
func Resolve(expected string, keys []string) (string, bool) {
	expectedNorm := NormalizeKey(expected)

	type candidate struct {
		norm     string
		original string
	}
	candidates := make([]candidate, 0, len(keys))
	for _, k := range keys {
		candidates = append(candidates, candidate{norm: NormalizeKey(k), original: k})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].norm != candidates[j].norm {
			return candidates[i].norm < candidates[j].norm
		}
		return candidates[i].original < candidates[j].original
	})

	for _, c := range candidates {
		if c.norm == expectedNorm {
			return c.original, true
		}
	}

	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := Similarity(expectedNorm, c.norm); score > bestScore {
			bestScore = score
			best = c.original
		}
	}
	if bestScore >= MinSimilarity {
		return best, true
	}
	return "", false
}
