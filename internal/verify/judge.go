// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify implements the layered verification strategy chain and the
// pipeline that drives it across a reference set.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/pkg/types"
)

var validate = validator.New()

// Verdict is the structured judgment the model must return. A reply that
// parses but fails validation is treated exactly like a network failure:
// the caller's retry executor runs the call again.
type Verdict struct {
	Status  string `json:"status" validate:"required,oneof=verified unverified error"`
	Message string `json:"message" validate:"required"`

	// Fixed carries a corrected reference record when the model found the
	// cited work under amended bibliographic details. Only the agent tier
	// prompts for it.
	Fixed *types.Reference `json:"fixed,omitempty"`
}

// ParseVerdict validates model output against the Verdict shape.
func ParseVerdict(content string) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(stripFences(content)), &v); err != nil {
		return Verdict{}, fmt.Errorf("verdict is not valid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return Verdict{}, fmt.Errorf("verdict failed schema validation: %w", err)
	}
	return v, nil
}

// stripFences removes a Markdown code fence wrapper some models emit around
// JSON even in constrained mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// judgmentPromptTmpl asks the model to decide from the search results alone
// whether the cited work exists. The reference is presented as the claim
// under test; the model must not use its own recall of the literature, so a
// hallucinated citation cannot confirm itself.
var judgmentPromptTmpl = template.Must(template.New("judgment").Parse(`You are a bibliographic verification system. A document cites the following reference:

{{.Reference}}

Below are web search results for this reference. Decide ONLY from these search results whether the cited work really exists. Do not rely on your own knowledge of the literature; if the results do not support the reference, it is not verified.

Search results:
{{range $i, $r := .Results}}{{$i}}. {{$r.Title}}
   {{$r.Link}}
   {{$r.Snippet}}
{{end}}
Respond with a JSON object: {"status": "verified" | "unverified" | "error", "message": "<one-sentence rationale>"}.
- "verified": a search result clearly matches the reference (title and authors or venue agree).
- "unverified": the results are about something else or contradict the reference.
- "error": the results are too ambiguous to decide.
Do not include any text outside the JSON object.`))

// urlCheckPromptTmpl asks the model whether fetched page content supports
// the reference.
var urlCheckPromptTmpl = template.Must(template.New("urlcheck").Parse(`You are a bibliographic verification system. A document cites the following reference:

{{.Reference}}

The reference includes a URL. The page at that URL was fetched and reduced to plain text:

---
{{.Content}}
---

Decide ONLY from this page content whether the page supports the reference (it is the cited work itself, its landing page, or it clearly describes the cited work).

Respond with a JSON object: {"status": "verified" | "unverified" | "error", "message": "<one-sentence rationale>"}.
Do not include any text outside the JSON object.`))

// FormatReference renders the fields used to present a reference to the
// model, preferring the immutable raw citation text.
func FormatReference(ref types.Reference) string {
	if ref.Raw != "" {
		return ref.Raw
	}
	var parts []string
	if len(ref.Authors) > 0 {
		parts = append(parts, strings.Join(ref.Authors, ", "))
	}
	if ref.Title != "" {
		parts = append(parts, ref.Title)
	}
	if ref.Journal != "" {
		parts = append(parts, ref.Journal)
	}
	if ref.Year != "" {
		parts = append(parts, ref.Year)
	}
	return strings.Join(parts, ". ")
}

// JudgeSearchResults asks the model for a verdict grounded in the search
// results.
func JudgeSearchResults(ctx context.Context, client llm.Client, ref types.Reference, results []types.OrganicResult) (Verdict, error) {
	var buf bytes.Buffer
	err := judgmentPromptTmpl.Execute(&buf, struct {
		Reference string
		Results   []types.OrganicResult
	}{FormatReference(ref), results})
	if err != nil {
		return Verdict{}, fmt.Errorf("rendering judgment prompt: %w", err)
	}
	return completeVerdict(ctx, client, buf.String())
}

// JudgeURLContent asks the model whether the fetched page supports the
// reference.
func JudgeURLContent(ctx context.Context, client llm.Client, ref types.Reference, content string) (Verdict, error) {
	var buf bytes.Buffer
	err := urlCheckPromptTmpl.Execute(&buf, struct {
		Reference string
		Content   string
	}{FormatReference(ref), content})
	if err != nil {
		return Verdict{}, fmt.Errorf("rendering url-check prompt: %w", err)
	}
	return completeVerdict(ctx, client, buf.String())
}

// completeVerdict runs one constrained completion and validates the reply.
func completeVerdict(ctx context.Context, client llm.Client, prompt string) (Verdict, error) {
	completion, err := client.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}, llm.Options{JSONOnly: true})
	if err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(completion.Content)
}
