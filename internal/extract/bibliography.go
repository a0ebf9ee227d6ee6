// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract parses reference lists out of documents so they can be
// fed to the verification pipeline without hand-building a references file.
package extract

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/refcheck/internal/doi"
	"github.com/pdiddy/refcheck/pkg/types"
)

var (
	// bracketEntryRe matches numbered bibliography entries like
	// "[1] Authors. Title. Venue, Year."
	bracketEntryRe = regexp.MustCompile(`(?m)^\[(\d+)\]\s+(.+)$`)

	// numberedEntryRe matches "1. Authors. Title." style entries.
	numberedEntryRe = regexp.MustCompile(`(?m)^(\d+)\.\s+(.+)$`)

	urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	doiRe = regexp.MustCompile(`\b10\.\d{4,9}/[^\s"'<>\])]+`)

	yearRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// Bibliography parses the references section of a document into Reference
// records. Every record gets a fresh ID, keeps the raw entry text verbatim,
// and starts pending. Documents without a recognizable references section
// yield nil.
func Bibliography(content string) []types.Reference {
	section := findReferencesSection(content)
	if section == "" {
		return nil
	}

	entries := bracketEntryRe.FindAllStringSubmatch(section, -1)
	if len(entries) == 0 {
		entries = numberedEntryRe.FindAllStringSubmatch(section, -1)
	}
	if len(entries) == 0 {
		// Unnumbered list: one entry per non-empty line.
		for _, line := range strings.Split(section, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			entries = append(entries, []string{line, "", line})
		}
	}

	var refs []types.Reference
	for _, m := range entries {
		raw := strings.TrimSpace(m[2])
		if raw == "" {
			continue
		}
		refs = append(refs, parseEntry(raw))
	}
	return refs
}

// findReferencesSection returns the text under a "References" or
// "Bibliography" heading. An empty string means the document has no
// reference list.
func findReferencesSection(content string) string {
	lines := strings.Split(content, "\n")
	var collecting bool
	var sectionLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if isHeading(trimmed) {
			heading := strings.ToLower(stripHeadingPrefix(trimmed))
			if strings.Contains(heading, "references") || strings.Contains(heading, "bibliography") {
				collecting = true
				continue
			}
			if collecting {
				break
			}
		}

		if collecting {
			sectionLines = append(sectionLines, line)
		}
	}

	return strings.Join(sectionLines, "\n")
}

func isHeading(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	// All-caps single-word headings ("REFERENCES") show up in plain-text
	// conversions.
	upper := strings.ToUpper(line)
	return line != "" && line == upper && len(strings.Fields(line)) <= 2 && !strings.ContainsAny(line, ".[]")
}

func stripHeadingPrefix(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "# "))
}

// authorBlockRe matches an author section like "Smith, A. and Jones, B." or
// "Brown, T. et al." at the start of an entry, so it can be separated from
// the title that follows.
var authorBlockRe = regexp.MustCompile(
	`^((?:[A-Z][a-z]+(?:,\s+[A-Z]\.?)?(?:,?\s+(?:and|&)\s+)?)+(?:\s*et\s+al\.)?)\s*[.]?\s+(.+)$`,
)

// parseEntry extracts the bibliographic fields it can find in one raw entry.
// The raw text is always preserved; fields the heuristics miss stay empty
// and the verification stages work from Raw.
func parseEntry(raw string) types.Reference {
	ref := types.Reference{
		ID:     uuid.NewString(),
		Raw:    raw,
		Status: types.StatusPending,
		Year:   extractYear(raw),
	}

	if m := doiRe.FindString(raw); m != "" && doi.Valid(m) {
		ref.DOI = doi.Normalize(strings.TrimRight(m, "."))
	}
	if m := urlRe.FindString(raw); m != "" && !strings.Contains(m, "doi.org") {
		ref.URL = strings.TrimRight(m, ".")
	}

	body := stripLocators(raw)
	if m := authorBlockRe.FindStringSubmatch(body); m != nil {
		ref.Authors = parseAuthors(strings.TrimRight(m[1], ". "))
		parts := splitOnPeriods(m[2])
		if len(parts) >= 1 {
			ref.Title = strings.TrimSpace(parts[0])
		}
		if len(parts) >= 2 {
			ref.Journal = cleanVenue(parts[1])
		}
	} else {
		parts := splitOnPeriods(body)
		if len(parts) >= 1 {
			ref.Title = strings.TrimSpace(parts[0])
		}
		if len(parts) >= 2 {
			ref.Journal = cleanVenue(parts[1])
		}
	}

	return ref
}

// stripLocators removes DOIs and URLs from the entry text so they do not
// pollute the title or venue fields.
func stripLocators(raw string) string {
	raw = urlRe.ReplaceAllString(raw, "")
	raw = doiRe.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "doi:", "")
	return strings.TrimSpace(raw)
}

// extractYear finds the first 4-digit year (19xx or 20xx) in the text.
func extractYear(text string) string {
	m := yearRe.FindStringSubmatch(text)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// initialRe matches single-letter author initials like "A." or "B." so they
// survive period-based splitting.
var initialRe = regexp.MustCompile(`\b([A-Z])\.`)

// splitOnPeriods splits an entry into segments at period boundaries,
// avoiding common abbreviations (et al., e.g., i.e.) and single-letter
// initials.
func splitOnPeriods(text string) []string {
	safe := strings.ReplaceAll(text, "et al.", "et al\x00")
	safe = strings.ReplaceAll(safe, "e.g.", "e\x00g\x00")
	safe = strings.ReplaceAll(safe, "i.e.", "i\x00e\x00")
	safe = initialRe.ReplaceAllString(safe, "${1}\x00")

	parts := strings.Split(safe, ". ")

	var result []string
	for _, p := range parts {
		p = strings.ReplaceAll(p, "et al\x00", "et al.")
		p = strings.ReplaceAll(p, "e\x00g\x00", "e.g.")
		p = strings.ReplaceAll(p, "i\x00e\x00", "i.e.")
		p = strings.ReplaceAll(p, "\x00", ".")
		p = strings.TrimRight(p, ".")
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseAuthors splits an author string like "Smith, A. and Jones, B." into
// individual author names.
func parseAuthors(authorStr string) []string {
	authorStr = strings.TrimSpace(authorStr)
	if authorStr == "" {
		return nil
	}

	var authors []string
	halves := strings.SplitN(authorStr, " and ", 2)
	for _, half := range halves {
		half = strings.TrimSpace(half)
		if half == "" {
			continue
		}
		authors = append(authors, half)
	}
	return authors
}

// cleanVenue strips the year and trailing punctuation from a venue segment.
func cleanVenue(text string) string {
	text = strings.TrimSpace(text)
	text = yearRe.ReplaceAllString(text, "")
	text = strings.TrimRight(text, "., ")
	return strings.TrimSpace(text)
}
