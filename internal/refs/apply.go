// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import "github.com/pdiddy/refcheck/pkg/types"

// Apply folds a VerificationAttemptResult into a Reference and returns the
// updated record. The status transition is monotonic: a pending reference
// accepts any terminal verdict, while a reference already carrying a
// terminal status may only be upgraded by a later verified attempt (the URL
// cross-check path). A verified reference is never downgraded by a weaker
// or stale attempt arriving out of order. Raw and ID are always kept.
func Apply(ref types.Reference, attempt types.VerificationAttemptResult) types.Reference {
	if !attempt.Status.Valid() || attempt.Status == types.StatusPending {
		return ref
	}

	switch {
	case ref.Status == types.StatusPending || ref.Status == "":
		// First verdict for this reference.
	case attempt.Status == types.StatusVerified:
		// Upgrade path: new positive evidence replaces a terminal verdict.
	default:
		return ref
	}

	ref.Status = attempt.Status
	ref.Message = attempt.Message
	ref.VerificationSource = attempt.Source

	if attempt.Fixed != nil {
		ref = applyCorrection(ref, *attempt.Fixed)
	}

	return ref
}

// applyCorrection copies corrected bibliographic fields onto ref, preserving
// identity (ID), provenance (Raw), and the status fields just written.
func applyCorrection(ref types.Reference, fixed types.Reference) types.Reference {
	if fixed.Title != "" {
		ref.Title = fixed.Title
	}
	if len(fixed.Authors) > 0 {
		ref.Authors = fixed.Authors
	}
	if fixed.DOI != "" {
		ref.DOI = fixed.DOI
	}
	if fixed.URL != "" {
		ref.URL = fixed.URL
	}
	if fixed.Journal != "" {
		ref.Journal = fixed.Journal
	}
	if fixed.Year != "" {
		ref.Year = fixed.Year
	}
	if fixed.Publisher != "" {
		ref.Publisher = fixed.Publisher
	}
	if fixed.Volume != "" {
		ref.Volume = fixed.Volume
	}
	if fixed.Issue != "" {
		ref.Issue = fixed.Issue
	}
	if fixed.Pages != "" {
		ref.Pages = fixed.Pages
	}
	if fixed.Conference != "" {
		ref.Conference = fixed.Conference
	}
	return ref
}
