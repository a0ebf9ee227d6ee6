// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/refcheck/internal/doi"
	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/verify"
	"github.com/pdiddy/refcheck/pkg/types"
)

// scriptedClient replays canned completions and records what it was sent.
type scriptedClient struct {
	replies  []llm.Completion
	calls    int
	received [][]llm.Message
}

func (s *scriptedClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	s.received = append(s.received, messages)
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

func testLoop(client llm.Client, tools *Toolset) *Loop {
	if tools == nil {
		tools = &Toolset{MaxRetries: 1, RetryBaseDelay: time.Millisecond}
	}
	return &Loop{
		Pool:           llm.NewPoolFromClients(client),
		Tools:          tools,
		Cfg:            types.AgentConfig{Enabled: true, MaxIterations: 5},
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
}

func agentRef() types.Reference {
	return types.Reference{
		ID:      "ref-1",
		Authors: []string{"Lamport, L."},
		Title:   "Time, Clocks, and the Ordering of Events in a Distributed System",
		Year:    "1978",
		Status:  types.StatusUnverified,
		Message: "search results did not match",
	}
}

func TestLoopImmediateVerdict(t *testing.T) {
	client := &scriptedClient{replies: []llm.Completion{
		{Content: `{"status": "verified", "message": "DOI resolves to the cited work"}`},
	}}
	l := testLoop(client, nil)

	res := l.Verify(context.Background(), 0, agentRef())
	assert.Equal(t, types.StatusVerified, res.Status)
	assert.Equal(t, verify.SourceAgent, res.Source)
	assert.Equal(t, 1, client.calls)
}

func TestLoopToolCallThenVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message": {"title": ["Time, Clocks, and the Ordering of Events in a Distributed System"], "publisher": "ACM", "URL": "https://doi.org/10.1145/359545.359563"}}`)
	}))
	defer srv.Close()

	tools := &Toolset{
		DOI:            &doi.Client{HTTP: srv.Client(), Cfg: types.DOIConfig{BaseURL: srv.URL + "/"}},
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
	client := &scriptedClient{replies: []llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: toolDOILookup, Arguments: `{"doi": "10.1145/359545.359563"}`}}},
		{Content: `{"status": "verified", "message": "registered title matches"}`},
	}}
	l := testLoop(client, tools)

	res := l.Verify(context.Background(), 0, agentRef())
	require.Equal(t, types.StatusVerified, res.Status)
	require.Equal(t, 2, client.calls)

	// The second model call must carry the tool result keyed by call ID.
	second := client.received[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)
	assert.Contains(t, last.Content, "Time, Clocks")
}

func TestLoopToolCallWinsOverVerdictInSameReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tools := &Toolset{
		DOI:            &doi.Client{HTTP: srv.Client(), Cfg: types.DOIConfig{BaseURL: srv.URL + "/"}},
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
	client := &scriptedClient{replies: []llm.Completion{
		{
			Content:   `{"status": "verified", "message": "premature"}`,
			ToolCalls: []llm.ToolCall{{ID: "call-1", Name: toolDOILookup, Arguments: `{"doi": "10.1000/bogus.1"}`}},
		},
		{Content: `{"status": "unverified", "message": "the DOI is not registered"}`},
	}}
	l := testLoop(client, tools)

	res := l.Verify(context.Background(), 0, agentRef())
	assert.Equal(t, types.StatusUnverified, res.Status, "the premature verdict must not be accepted")
	assert.Equal(t, 2, client.calls)
}

func TestLoopStopsAtMaxIterations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tools := &Toolset{
		DOI:            &doi.Client{HTTP: srv.Client(), Cfg: types.DOIConfig{BaseURL: srv.URL + "/"}},
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
	}
	// The model keeps asking for the same lookup and never concludes.
	client := &scriptedClient{replies: []llm.Completion{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: toolDOILookup, Arguments: `{"doi": "10.1000/bogus.1"}`}}},
	}}
	l := testLoop(client, tools)

	res := l.Verify(context.Background(), 0, agentRef())
	assert.Equal(t, types.StatusError, res.Status)
	assert.Contains(t, res.Message, "5 iterations")
	assert.Equal(t, 5, client.calls)
}

func TestLoopMalformedVerdictConsumesIteration(t *testing.T) {
	client := &scriptedClient{replies: []llm.Completion{
		{Content: "I think this reference is probably fine."},
	}}
	l := testLoop(client, nil)

	res := l.Verify(context.Background(), 0, agentRef())
	assert.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, 5, client.calls)

	// After the first bad reply the model is told what was wrong.
	second := client.received[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	assert.Contains(t, last.Content, "not a valid verdict")
}

func TestLoopVerdictCarriesFixedReference(t *testing.T) {
	client := &scriptedClient{replies: []llm.Completion{
		{Content: `{"status": "verified", "message": "found under corrected year", "fixed": {"year": "1978", "doi": "10.1145/359545.359563"}}`},
	}}
	l := testLoop(client, nil)

	res := l.Verify(context.Background(), 0, agentRef())
	require.Equal(t, types.StatusVerified, res.Status)
	require.NotNil(t, res.Fixed)
	assert.Equal(t, "1978", res.Fixed.Year)
	assert.Equal(t, "10.1145/359545.359563", res.Fixed.DOI)
}

func TestLoopOpeningPromptCarriesEvidence(t *testing.T) {
	client := &scriptedClient{replies: []llm.Completion{
		{Content: `{"status": "unverified", "message": "no"}`},
	}}
	l := testLoop(client, nil)

	ref := agentRef()
	ref.SearchResults = []types.OrganicResult{{Title: "Candidate", Link: "https://example.org/c", Snippet: "snippet text"}}
	l.Verify(context.Background(), 0, ref)

	require.NotEmpty(t, client.received)
	opening := client.received[0]
	require.Len(t, opening, 2)
	assert.Equal(t, llm.RoleSystem, opening[0].Role)
	assert.Contains(t, opening[1].Content, "Lamport")
	assert.Contains(t, opening[1].Content, "search results did not match")
	assert.Contains(t, opening[1].Content, "https://example.org/c")
}

func TestDispatchUnknownTool(t *testing.T) {
	tools := &Toolset{MaxRetries: 1, RetryBaseDelay: time.Millisecond}
	out := tools.Dispatch(context.Background(), "delete_reference", "{}")
	assert.True(t, strings.HasPrefix(out, "error:"), "got %q", out)
}

func TestDispatchBadArguments(t *testing.T) {
	tools := &Toolset{MaxRetries: 1, RetryBaseDelay: time.Millisecond}
	for _, name := range []string{toolSearchReferences, toolDOILookup, toolCheckURL} {
		out := tools.Dispatch(context.Background(), name, "not json")
		assert.True(t, strings.HasPrefix(out, "error:"), "%s: got %q", name, out)
	}
}
