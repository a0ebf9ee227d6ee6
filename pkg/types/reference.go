// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the refcheck pipeline.
package types

// ReferenceStatus is the verification state of a single reference. A
// reference starts pending and always ends a pipeline run in one of the
// terminal states.
type ReferenceStatus string

const (
	StatusPending    ReferenceStatus = "pending"
	StatusVerified   ReferenceStatus = "verified"
	StatusUnverified ReferenceStatus = "unverified"
	StatusError      ReferenceStatus = "error"
	StatusNeedsHuman ReferenceStatus = "needs-human"
)

// Terminal reports whether the status is final for this verification attempt.
func (s ReferenceStatus) Terminal() bool {
	switch s {
	case StatusVerified, StatusUnverified, StatusError, StatusNeedsHuman:
		return true
	}
	return false
}

// Valid reports whether s is one of the known status values.
func (s ReferenceStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// Reference is a candidate citation awaiting a validity determination.
type Reference struct {
	// ID is a stable identifier assigned when the reference is created.
	ID string `json:"id" yaml:"id"`

	// Authors lists the cited work's authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Title is the cited work's title.
	Title string `json:"title" yaml:"title"`

	DOI          string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
	Journal      string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year         string `json:"year,omitempty" yaml:"year,omitempty"`
	Publisher    string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Volume       string `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue        string `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages        string `json:"pages,omitempty" yaml:"pages,omitempty"`
	Conference   string `json:"conference,omitempty" yaml:"conference,omitempty"`
	DateOfAccess string `json:"date_of_access,omitempty" yaml:"date_of_access,omitempty"`

	// Raw is the original citation text. Set once at creation, never mutated.
	Raw string `json:"raw" yaml:"raw"`

	// Status is the current verification state.
	Status ReferenceStatus `json:"status" yaml:"status"`

	// VerificationSource names the strategy that produced the current status
	// (e.g. "search", "url_check", "agent").
	VerificationSource string `json:"verification_source,omitempty" yaml:"verification_source,omitempty"`

	// Message is a human-readable rationale for the current status.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// SearchResults caches organic web results gathered for this reference
	// so the judgment stage does not repeat the search call.
	SearchResults []OrganicResult `json:"search_results,omitempty" yaml:"search_results,omitempty"`
}

// OrganicResult is a single web search hit.
type OrganicResult struct {
	Title   string `json:"title" yaml:"title"`
	Link    string `json:"link" yaml:"link"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

// VerificationAttemptResult is the outcome of one strategy execution. It
// never mutates a Reference directly; refs.Apply folds it into the record.
type VerificationAttemptResult struct {
	// Status is the verdict of this attempt.
	Status ReferenceStatus `json:"status" yaml:"status"`

	// Message explains the verdict.
	Message string `json:"message" yaml:"message"`

	// Source names the strategy that produced this attempt.
	Source string `json:"source" yaml:"source"`

	// Fixed optionally carries a corrected reference proposed by the agent
	// loop. Raw and ID of the original are always kept.
	Fixed *Reference `json:"fixed,omitempty" yaml:"fixed,omitempty"`
}

// ReferencesFile is the on-disk format for a set of references.
type ReferencesFile struct {
	References []Reference `json:"references" yaml:"references"`
}
