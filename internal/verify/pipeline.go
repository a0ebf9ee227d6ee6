// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/refcheck/internal/batch"
	"github.com/pdiddy/refcheck/internal/refs"
	"github.com/pdiddy/refcheck/internal/retry"
	"github.com/pdiddy/refcheck/internal/websearch"
	"github.com/pdiddy/refcheck/pkg/types"
)

// Strategy produces a verification attempt for one reference. index is the
// reference's position in the batch and selects credentials from the pool.
type Strategy interface {
	Verify(ctx context.Context, index int, ref types.Reference) types.VerificationAttemptResult
}

// Pipeline drives the full verification flow: normalization, a wide search
// pass that gathers evidence for every reference, then a narrower
// verification pass that runs the strategy chain and applies outcomes under
// the state-transition rules.
type Pipeline struct {
	Chain  Strategy
	Agent  Strategy // optional escalation tier, nil when disabled
	Search *websearch.Client
	Cfg    types.PipelineConfig

	// Out receives progress lines. Defaults to io.Discard.
	Out io.Writer
}

// Run verifies refsIn and returns the processed set in the original order.
// Every returned reference holds a terminal status.
func (p *Pipeline) Run(ctx context.Context, refsIn []types.Reference) ([]types.Reference, error) {
	out := p.Out
	if out == nil {
		out = io.Discard
	}

	normalized := refs.Normalize(refsIn)
	if len(normalized) < len(refsIn) {
		fmt.Fprintf(out, "normalized %d references to %d (dropped unidentifiable or duplicate entries)\n", len(refsIn), len(normalized))
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	fmt.Fprintf(out, "searching %d references...\n", len(normalized))
	searched, err := p.runPass(ctx, out, normalized, &batch.Runner{
		BatchSize:   p.Cfg.Batch.SearchBatchSize,
		WindowDelay: p.Cfg.Batch.SearchWindowDelay,
	}, p.searchItem)
	if err != nil {
		return searched, fmt.Errorf("search pass: %w", err)
	}

	fmt.Fprintf(out, "verifying %d references...\n", len(searched))
	verified, err := p.runPass(ctx, out, searched, &batch.Runner{
		BatchSize:   p.Cfg.Batch.VerifyBatchSize,
		WindowDelay: p.Cfg.Batch.VerifyWindowDelay,
	}, p.verifyItem)
	if err != nil {
		return verified, fmt.Errorf("verify pass: %w", err)
	}
	return verified, nil
}

// runPass runs one batched pass, draining progress events to out.
func (p *Pipeline) runPass(ctx context.Context, out io.Writer, items []types.Reference, runner *batch.Runner, fn batch.ItemFunc) ([]types.Reference, error) {
	progress := make(chan batch.ProgressEvent, 1)
	runner.Progress = progress

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range progress {
			fmt.Fprintf(out, "  %d/%d done\n", ev.Completed, ev.Total)
		}
	}()

	result, err := runner.Run(ctx, items, fn)
	close(progress)
	wg.Wait()
	return result, err
}

// searchItem gathers web evidence for one reference. A search failure is
// not terminal here; the verify pass will retry and classify it.
func (p *Pipeline) searchItem(ctx context.Context, index int, ref types.Reference) types.Reference {
	var results []types.OrganicResult
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = p.Search.Search(ctx, websearch.BuildQuery(ref))
		return err
	}, p.Cfg.Verify.MaxRetries, p.Cfg.Verify.RetryBaseDelay)
	if err != nil {
		return ref
	}
	ref.SearchResults = results
	return ref
}

// verifyItem runs the strategy chain for one reference, escalating to the
// agent tier when the chain could not settle the question, and applies the
// outcome under the monotonic transition rules.
func (p *Pipeline) verifyItem(ctx context.Context, index int, ref types.Reference) types.Reference {
	attempt := p.Chain.Verify(ctx, index, ref)
	ref = refs.Apply(ref, attempt)

	if p.Agent != nil && (ref.Status == types.StatusError || ref.Status == types.StatusUnverified) {
		escalated := p.Agent.Verify(ctx, index, ref)
		ref = refs.Apply(ref, escalated)
	}

	// Fail closed: anything the chain could not classify is an error,
	// never silently verified.
	if ref.Status == types.StatusPending {
		ref.Status = types.StatusError
		ref.Message = "verification did not complete"
	}
	return ref
}
