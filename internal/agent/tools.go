// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/refcheck/internal/doi"
	"github.com/pdiddy/refcheck/internal/fetch"
	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/retry"
	"github.com/pdiddy/refcheck/internal/websearch"
	"github.com/pdiddy/refcheck/pkg/types"
)

// Tool names the model may invoke.
const (
	toolSearchReferences = "search_references"
	toolDOILookup        = "doi_lookup"
	toolCheckURL         = "check_url"
)

// Toolset executes the model's tool calls against the real collaborators.
// Tool failures are reported back to the model as text, not surfaced as
// loop errors; the model decides whether to try a different tool.
type Toolset struct {
	Search *websearch.Client
	DOI    *doi.Client
	Fetch  *fetch.Client

	// MaxRetries and RetryBaseDelay govern the retry executor wrapped
	// around each tool's external call.
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Defs returns the tool declarations advertised to the model.
func (t *Toolset) Defs() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        toolSearchReferences,
			Description: "Run a web search and return organic results (title, link, snippet) as JSON. Use it to look for the cited work under alternative titles or author spellings.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "the search query"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolDOILookup,
			Description: "Resolve a DOI against the Crossref registry and return the registered title, publisher, and URL as JSON. A DOI that resolves is strong evidence the work exists.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"doi": map[string]any{"type": "string", "description": "the DOI, with or without a doi.org prefix"},
				},
				"required": []string{"doi"},
			},
		},
		{
			Name:        toolCheckURL,
			Description: "Fetch a URL and return the page reduced to plain text. Use it to confirm a candidate link actually describes the cited work.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string", "description": "the URL to fetch"},
				},
				"required": []string{"url"},
			},
		},
	}
}

// Dispatch executes one tool call and returns the content for the tool
// reply message.
func (t *Toolset) Dispatch(ctx context.Context, name, arguments string) string {
	switch name {
	case toolSearchReferences:
		return t.searchReferences(ctx, arguments)
	case toolDOILookup:
		return t.doiLookup(ctx, arguments)
	case toolCheckURL:
		return t.checkURL(ctx, arguments)
	default:
		return fmt.Sprintf("error: unknown tool %q", name)
	}
}

func (t *Toolset) searchReferences(ctx context.Context, arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.Query == "" {
		return "error: search_references requires a non-empty \"query\" argument"
	}

	var results []types.OrganicResult
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = t.Search.Search(ctx, args.Query)
		return err
	}, t.MaxRetries, t.RetryBaseDelay)
	if err != nil {
		return fmt.Sprintf("error: search failed: %v", err)
	}
	if len(results) == 0 {
		return "no results"
	}
	out, err := json.Marshal(results)
	if err != nil {
		return fmt.Sprintf("error: encoding results: %v", err)
	}
	return string(out)
}

func (t *Toolset) doiLookup(ctx context.Context, arguments string) string {
	var args struct {
		DOI string `json:"doi"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.DOI == "" {
		return "error: doi_lookup requires a non-empty \"doi\" argument"
	}

	var work doi.Work
	var notFound bool
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		work, err = t.DOI.Resolve(ctx, args.DOI)
		if errors.Is(err, doi.ErrNotFound) {
			// Not transient; do not burn retries on it.
			notFound = true
			return nil
		}
		return err
	}, t.MaxRetries, t.RetryBaseDelay)
	if err != nil {
		return fmt.Sprintf("error: DOI resolution failed: %v", err)
	}
	if notFound {
		return fmt.Sprintf("DOI %s is not registered", doi.Normalize(args.DOI))
	}
	out, err := json.Marshal(work)
	if err != nil {
		return fmt.Sprintf("error: encoding work: %v", err)
	}
	return string(out)
}

func (t *Toolset) checkURL(ctx context.Context, arguments string) string {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args.URL == "" {
		return "error: check_url requires a non-empty \"url\" argument"
	}

	var content string
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		content, err = t.Fetch.Page(ctx, args.URL)
		return err
	}, t.MaxRetries, t.RetryBaseDelay)
	if err != nil {
		return fmt.Sprintf("error: fetch failed: %v", err)
	}
	return content
}
