// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"fmt"

	"github.com/pdiddy/refcheck/internal/fetch"
	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/retry"
	"github.com/pdiddy/refcheck/internal/websearch"
	"github.com/pdiddy/refcheck/pkg/types"
)

// Verification sources recorded on attempt results.
const (
	SourceSearch   = "search"
	SourceURLCheck = "url_check"
	SourceAgent    = "agent"
)

// Chain runs the layered verification strategies against one reference:
// search-grounded model judgment first, then a URL content cross-check when
// the first stage did not verify and the reference carries a URL. A later
// stage can upgrade the outcome to verified but never downgrades it.
type Chain struct {
	Pool   *llm.Pool
	Search *websearch.Client
	Fetch  *fetch.Client
	Cfg    types.VerifyConfig
}

// Verify produces a verification attempt for ref. index selects the API key
// used for model calls, so concurrent batch items spread across the pool.
func (c *Chain) Verify(ctx context.Context, index int, ref types.Reference) types.VerificationAttemptResult {
	result := c.judgeFromSearch(ctx, index, ref)
	if result.Status == types.StatusVerified {
		return result
	}
	if !c.Cfg.EnableURLCheck || ref.URL == "" {
		return result
	}
	if result.Status != types.StatusError && result.Status != types.StatusUnverified {
		return result
	}

	urlResult := c.checkURL(ctx, index, ref)
	if urlResult.Status == types.StatusVerified {
		return urlResult
	}
	// The cross-check failing to verify is not new evidence against the
	// reference; keep the search-stage outcome.
	return result
}

func (c *Chain) judgeFromSearch(ctx context.Context, index int, ref types.Reference) types.VerificationAttemptResult {
	results := ref.SearchResults
	if len(results) == 0 {
		var err error
		results, err = c.search(ctx, ref)
		if err != nil {
			return types.VerificationAttemptResult{
				Status:  types.StatusError,
				Message: fmt.Sprintf("web search failed: %v", err),
				Source:  SourceSearch,
			}
		}
	}
	if len(results) == 0 {
		return c.noResultsOutcome(ref)
	}

	verdict, err := c.judge(ctx, index, func(ctx context.Context, client llm.Client) (Verdict, error) {
		return JudgeSearchResults(ctx, client, ref, results)
	})
	if err != nil {
		return types.VerificationAttemptResult{
			Status:  types.StatusError,
			Message: fmt.Sprintf("judgment failed: %v", err),
			Source:  SourceSearch,
		}
	}
	return types.VerificationAttemptResult{
		Status:  types.ReferenceStatus(verdict.Status),
		Message: verdict.Message,
		Source:  SourceSearch,
	}
}

// noResultsOutcome decides what an empty result set means. In strict mode
// silence is an error; otherwise the reference is routed to a human, since
// obscure but real works can be invisible to web search.
func (c *Chain) noResultsOutcome(ref types.Reference) types.VerificationAttemptResult {
	if c.Cfg.StrictNoResults {
		return types.VerificationAttemptResult{
			Status:  types.StatusError,
			Message: "no search results found for reference",
			Source:  SourceSearch,
		}
	}
	return types.VerificationAttemptResult{
		Status:  types.StatusNeedsHuman,
		Message: "no search results found; manual review required",
		Source:  SourceSearch,
	}
}

func (c *Chain) checkURL(ctx context.Context, index int, ref types.Reference) types.VerificationAttemptResult {
	var content string
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		content, err = c.Fetch.Page(ctx, ref.URL)
		return err
	}, c.Cfg.MaxRetries, c.Cfg.RetryBaseDelay)
	if err != nil {
		return types.VerificationAttemptResult{
			Status:  types.StatusError,
			Message: fmt.Sprintf("fetching %s failed: %v", ref.URL, err),
			Source:  SourceURLCheck,
		}
	}

	verdict, err := c.judge(ctx, index, func(ctx context.Context, client llm.Client) (Verdict, error) {
		return JudgeURLContent(ctx, client, ref, content)
	})
	if err != nil {
		return types.VerificationAttemptResult{
			Status:  types.StatusError,
			Message: fmt.Sprintf("url-check judgment failed: %v", err),
			Source:  SourceURLCheck,
		}
	}
	return types.VerificationAttemptResult{
		Status:  types.ReferenceStatus(verdict.Status),
		Message: verdict.Message,
		Source:  SourceURLCheck,
	}
}

// search runs a retry-wrapped web search for ref.
func (c *Chain) search(ctx context.Context, ref types.Reference) ([]types.OrganicResult, error) {
	var results []types.OrganicResult
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.Search.Search(ctx, websearch.BuildQuery(ref))
		return err
	}, c.Cfg.MaxRetries, c.Cfg.RetryBaseDelay)
	return results, err
}

// judge runs a retry-wrapped verdict completion on the pool client for
// index. Malformed verdicts count as failures and are retried.
func (c *Chain) judge(ctx context.Context, index int, fn func(context.Context, llm.Client) (Verdict, error)) (Verdict, error) {
	client := c.Pool.Completer(index)
	var verdict Verdict
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		verdict, err = fn(ctx, client)
		return err
	}, c.Cfg.MaxRetries, c.Cfg.RetryBaseDelay)
	return verdict, err
}
