// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refs implements the reference pre-filter and the per-reference
// status state machine. Both are pure functions so the rest of the pipeline
// can fan out without shared mutable state.
package refs

import (
	"strings"

	"github.com/pdiddy/refcheck/pkg/types"
)

// authorOverlapThreshold is the fraction of the smaller author set that must
// appear in the other set for two references to count as the same work.
const authorOverlapThreshold = 0.7

// Normalize filters and deduplicates a raw reference set before any network
// cost is spent. It never fails: unverifiable references (no title and no
// authors) are dropped, later duplicates of an earlier reference are dropped,
// and the relative order of first occurrences is preserved. Stored fields
// are not mutated; canonicalization is for comparison only. Normalize is
// idempotent.
func Normalize(references []types.Reference) []types.Reference {
	var kept []types.Reference

	for _, ref := range references {
		if strings.TrimSpace(ref.Title) == "" && len(nonEmptyAuthors(ref.Authors)) == 0 {
			continue
		}

		dup := false
		for _, prev := range kept {
			if isDuplicate(prev, ref) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		kept = append(kept, ref)
	}

	return kept
}

// isDuplicate reports whether two references describe the same work:
// canonicalized titles are equal and the author sets are similar.
func isDuplicate(a, b types.Reference) bool {
	ta := canonicalTitle(a.Title)
	tb := canonicalTitle(b.Title)
	if ta == "" || ta != tb {
		return false
	}
	return authorsSimilar(a.Authors, b.Authors)
}

// authorsSimilar holds when the author-set cardinalities differ by at most
// one and at least 70% of the smaller set's names appear in the other set.
// Two empty sets are similar (title alone identifies the work then).
func authorsSimilar(a, b []string) bool {
	setA := authorSet(a)
	setB := authorSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return true
	}

	diff := len(setA) - len(setB)
	if diff < 0 {
		diff = -diff
	}
	if diff > 1 {
		return false
	}

	smaller, larger := setA, setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}
	if len(smaller) == 0 {
		// Cardinality diff is at most one, so the larger set has a single
		// author and there is nothing to contradict the title match.
		return true
	}

	overlap := 0
	for name := range smaller {
		if larger[name] {
			overlap++
		}
	}
	return float64(overlap) >= authorOverlapThreshold*float64(len(smaller))
}

// canonicalTitle lowercases and trims a title for comparison.
func canonicalTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// authorSet returns the lowercased, trimmed, non-empty author names as a set.
func authorSet(authors []string) map[string]bool {
	set := make(map[string]bool, len(authors))
	for _, a := range authors {
		name := strings.ToLower(strings.TrimSpace(a))
		if name != "" {
			set[name] = true
		}
	}
	return set
}

// nonEmptyAuthors returns the authors with non-whitespace names.
func nonEmptyAuthors(authors []string) []string {
	var out []string
	for _, a := range authors {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}
