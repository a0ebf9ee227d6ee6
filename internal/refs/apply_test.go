// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refs

import (
	"testing"

	"github.com/pdiddy/refcheck/pkg/types"
)

func pendingRef() types.Reference {
	return types.Reference{
		ID:     "r1",
		Title:  "Paper A",
		Raw:    "Smith, A. Paper A. Journal of Tests, 2020.",
		Status: types.StatusPending,
	}
}

func TestApplyPendingAcceptsAnyTerminal(t *testing.T) {
	for _, status := range []types.ReferenceStatus{
		types.StatusVerified, types.StatusUnverified, types.StatusError, types.StatusNeedsHuman,
	} {
		t.Run(string(status), func(t *testing.T) {
			out := Apply(pendingRef(), types.VerificationAttemptResult{
				Status: status, Message: "m", Source: "search",
			})
			if out.Status != status {
				t.Errorf("Status = %q, want %q", out.Status, status)
			}
			if out.Message != "m" || out.VerificationSource != "search" {
				t.Errorf("message/source not applied: %+v", out)
			}
		})
	}
}

func TestApplyVerifiedNeverDowngraded(t *testing.T) {
	ref := Apply(pendingRef(), types.VerificationAttemptResult{
		Status: types.StatusVerified, Message: "found", Source: "search",
	})

	out := Apply(ref, types.VerificationAttemptResult{
		Status: types.StatusError, Message: "late failure", Source: "url_check",
	})
	if out.Status != types.StatusVerified {
		t.Errorf("Status = %q, verified must not be downgraded", out.Status)
	}
	if out.Message != "found" {
		t.Errorf("Message = %q, stale attempt must not replace it", out.Message)
	}
}

func TestApplyUpgradePath(t *testing.T) {
	ref := Apply(pendingRef(), types.VerificationAttemptResult{
		Status: types.StatusError, Message: "search failed", Source: "search",
	})

	out := Apply(ref, types.VerificationAttemptResult{
		Status: types.StatusVerified, Message: "page supports the reference", Source: "url_check",
	})
	if out.Status != types.StatusVerified {
		t.Errorf("Status = %q, want verified after upgrade", out.Status)
	}
	if out.Message != "page supports the reference" {
		t.Errorf("upgrade should replace the message, got %q", out.Message)
	}
	if out.VerificationSource != "url_check" {
		t.Errorf("VerificationSource = %q", out.VerificationSource)
	}
}

func TestApplyIgnoresInvalidStatus(t *testing.T) {
	ref := pendingRef()
	out := Apply(ref, types.VerificationAttemptResult{Status: "bogus", Message: "x"})
	if out.Status != types.StatusPending {
		t.Errorf("Status = %q, invalid attempt must not transition", out.Status)
	}
	out = Apply(ref, types.VerificationAttemptResult{Status: types.StatusPending})
	if out.Status != types.StatusPending || out.Message != "" {
		t.Errorf("pending attempt must be a no-op, got %+v", out)
	}
}

func TestApplyCorrectionKeepsRawAndID(t *testing.T) {
	out := Apply(pendingRef(), types.VerificationAttemptResult{
		Status:  types.StatusVerified,
		Message: "corrected",
		Source:  "agent",
		Fixed: &types.Reference{
			ID:      "should-not-replace",
			Raw:     "should-not-replace",
			Title:   "Paper A, Revised Title",
			Authors: []string{"A Smith", "B Jones"},
			DOI:     "10.1234/abcd",
			Year:    "2021",
		},
	})

	if out.ID != "r1" {
		t.Errorf("ID = %q, must be preserved", out.ID)
	}
	if out.Raw != "Smith, A. Paper A. Journal of Tests, 2020." {
		t.Errorf("Raw = %q, must be immutable", out.Raw)
	}
	if out.Title != "Paper A, Revised Title" {
		t.Errorf("Title = %q, correction not applied", out.Title)
	}
	if out.DOI != "10.1234/abcd" || out.Year != "2021" || len(out.Authors) != 2 {
		t.Errorf("correction fields not applied: %+v", out)
	}
}
