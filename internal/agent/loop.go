// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent escalates hard references to an iterative tool-using model
// session. The strategy chain handles the common case in one round trip;
// the agent exists for references that need investigation, such as works
// cited under a mangled title or a stale URL.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/retry"
	"github.com/pdiddy/refcheck/internal/verify"
	"github.com/pdiddy/refcheck/pkg/types"
)

const defaultMaxIterations = 5

var systemPrompt = `You are a bibliographic verification agent. You are given a reference that automated checks could not confirm. Investigate it with the tools available to you, then deliver a verdict.

Rules:
- Base your verdict only on tool evidence gathered in this session, never on your own recall of the literature.
- A resolving DOI whose registered title matches the reference is sufficient to verify.
- When you have enough evidence, reply with a JSON object and nothing else:
  {"status": "verified" | "unverified" | "error", "message": "<one-sentence rationale>", "fixed": {...}}
- Include "fixed" only when the work exists but the citation's details are wrong; it holds the corrected fields (title, authors, doi, url, journal, year).
- "error" means the evidence was too ambiguous or the tools kept failing.`

var openingPromptTmpl = template.Must(template.New("opening").Parse(`Reference under investigation:

{{.Reference}}
{{if .PriorMessage}}
Automated checks already ran and reported: {{.PriorMessage}}
{{end}}{{if .Results}}Earlier web search results:
{{range $i, $r := .Results}}{{$i}}. {{$r.Title}}
   {{$r.Link}}
   {{$r.Snippet}}
{{end}}{{end}}
Investigate and deliver your verdict.`))

// Loop runs the escalation session for one reference. It implements the
// same strategy contract as the chain, so the pipeline treats both tiers
// uniformly.
type Loop struct {
	Pool  *llm.Pool
	Tools *Toolset
	Cfg   types.AgentConfig

	// MaxRetries and RetryBaseDelay govern retries around each model call.
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// State is one escalation session. Step advances it an iteration at a time
// so the controller, not the model, owns termination.
type State struct {
	Messages  []llm.Message
	Iteration int
	Done      bool
	Result    types.VerificationAttemptResult
}

// NewState seeds a session with the reference and whatever evidence the
// chain already gathered.
func (l *Loop) NewState(ref types.Reference) (*State, error) {
	var buf bytes.Buffer
	err := openingPromptTmpl.Execute(&buf, struct {
		Reference    string
		PriorMessage string
		Results      []types.OrganicResult
	}{verify.FormatReference(ref), ref.Message, ref.SearchResults})
	if err != nil {
		return nil, fmt.Errorf("rendering opening prompt: %w", err)
	}
	return &State{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buf.String()},
		},
	}, nil
}

// Step runs one iteration: one model call, then either tool dispatch or
// verdict acceptance. Tool calls win over a verdict appearing in the same
// reply; evidence the model asked for should be gathered before its
// conclusion is trusted.
func (l *Loop) Step(ctx context.Context, index int, s *State) error {
	if s.Done {
		return nil
	}
	s.Iteration++

	client := l.Pool.Completer(index)
	var completion llm.Completion
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		completion, err = client.Complete(ctx, s.Messages, llm.Options{Tools: l.Tools.Defs()})
		return err
	}, l.MaxRetries, l.RetryBaseDelay)
	if err != nil {
		return fmt.Errorf("model call failed: %w", err)
	}

	s.Messages = append(s.Messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   completion.Content,
		ToolCalls: completion.ToolCalls,
	})

	if len(completion.ToolCalls) > 0 {
		for _, call := range completion.ToolCalls {
			result := l.Tools.Dispatch(ctx, call.Name, call.Arguments)
			s.Messages = append(s.Messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
		return nil
	}

	verdict, err := verify.ParseVerdict(completion.Content)
	if err != nil {
		// Burn the iteration and tell the model what was wrong with
		// its reply.
		s.Messages = append(s.Messages, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Your reply was not a valid verdict: %v. Reply with the JSON verdict object and nothing else.", err),
		})
		return nil
	}

	s.Done = true
	s.Result = types.VerificationAttemptResult{
		Status:  types.ReferenceStatus(verdict.Status),
		Message: verdict.Message,
		Source:  verify.SourceAgent,
		Fixed:   verdict.Fixed,
	}
	return nil
}

// Verify runs a full session for ref, capped at Cfg.MaxIterations. A session
// that never converges is an error outcome, not a verdict.
func (l *Loop) Verify(ctx context.Context, index int, ref types.Reference) types.VerificationAttemptResult {
	maxIterations := l.Cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	s, err := l.NewState(ref)
	if err != nil {
		return errorResult(err.Error())
	}

	for s.Iteration < maxIterations {
		if err := l.Step(ctx, index, s); err != nil {
			return errorResult(fmt.Sprintf("agent stopped at iteration %d: %v", s.Iteration, err))
		}
		if s.Done {
			return s.Result
		}
	}
	return errorResult(fmt.Sprintf("agent reached no verdict within %d iterations", maxIterations))
}

func errorResult(message string) types.VerificationAttemptResult {
	return types.VerificationAttemptResult{
		Status:  types.StatusError,
		Message: message,
		Source:  verify.SourceAgent,
	}
}
