// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/refcheck/internal/fetch"
	"github.com/pdiddy/refcheck/internal/llm"
	"github.com/pdiddy/refcheck/internal/websearch"
	"github.com/pdiddy/refcheck/pkg/types"
)

// searchClientReturningNothing points a search client at a stub server whose
// organic result list is always empty.
func searchClientReturningNothing(t *testing.T) *websearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"organic": []}`)
	}))
	t.Cleanup(srv.Close)
	return &websearch.Client{
		HTTP: srv.Client(),
		Cfg:  types.WebSearchConfig{BaseURL: srv.URL, APIKey: "test-key", MaxResults: 10},
	}
}

// scriptedClient returns canned completions in order, then repeats the last.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
}

func (s *scriptedClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.Completion{}, s.errs[i]
	}
	return llm.Completion{Content: s.replies[i]}, nil
}

func verdictJSON(status, message string) string {
	return fmt.Sprintf(`{"status": %q, "message": %q}`, status, message)
}

func testRef() types.Reference {
	return types.Reference{
		ID:      "ref-1",
		Authors: []string{"Shannon, C. E."},
		Title:   "A Mathematical Theory of Communication",
		Year:    "1948",
		Raw:     "Shannon, C. E. (1948). A Mathematical Theory of Communication.",
	}
}

func testChain(client llm.Client, cfg types.VerifyConfig) *Chain {
	return &Chain{
		Pool: llm.NewPoolFromClients(client),
		Cfg:  cfg,
	}
}

func fastVerifyConfig() types.VerifyConfig {
	return types.VerifyConfig{
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		EnableURLCheck: true,
	}
}

func TestChainVerifiedFromSearchResults(t *testing.T) {
	client := &scriptedClient{replies: []string{verdictJSON("verified", "first result matches title and author")}}
	c := testChain(client, fastVerifyConfig())

	ref := testRef()
	ref.SearchResults = []types.OrganicResult{
		{Title: "A Mathematical Theory of Communication", Link: "https://example.org/shannon1948", Snippet: "C. E. Shannon, Bell System Technical Journal"},
	}

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusVerified, res.Status)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, "first result matches title and author", res.Message)
	assert.Equal(t, 1, client.calls)
}

func TestChainNoResultsStrictIsError(t *testing.T) {
	cfg := fastVerifyConfig()
	cfg.StrictNoResults = true
	client := &scriptedClient{replies: []string{verdictJSON("verified", "should not be consulted")}}
	c := testChain(client, cfg)
	c.Search = searchClientReturningNothing(t)

	ref := testRef()
	ref.URL = "" // no URL, so no second stage either

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Contains(t, res.Message, "no search results")
	assert.Equal(t, 0, client.calls, "model must not be asked to judge an empty result set")
}

func TestChainNoResultsLenientNeedsHuman(t *testing.T) {
	cfg := fastVerifyConfig()
	cfg.StrictNoResults = false
	client := &scriptedClient{replies: []string{verdictJSON("verified", "should not be consulted")}}
	c := testChain(client, cfg)
	c.Search = searchClientReturningNothing(t)

	res := c.Verify(context.Background(), 0, testRef())
	assert.Equal(t, types.StatusNeedsHuman, res.Status)
	assert.Equal(t, 0, client.calls)
}

func TestChainURLCheckUpgradesUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body><h1>A Mathematical Theory of Communication</h1><p>C. E. Shannon</p></body></html>")
	}))
	defer srv.Close()

	client := &scriptedClient{replies: []string{
		verdictJSON("unverified", "results describe a different paper"),
		verdictJSON("verified", "page is the cited work"),
	}}
	c := testChain(client, fastVerifyConfig())
	c.Fetch = &fetch.Client{HTTP: srv.Client(), Cfg: types.FetchConfig{MaxContentBytes: 4096}}

	ref := testRef()
	ref.URL = srv.URL
	ref.SearchResults = []types.OrganicResult{{Title: "Unrelated", Link: "https://example.org/other", Snippet: "something else"}}

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusVerified, res.Status)
	assert.Equal(t, SourceURLCheck, res.Source)
	assert.Equal(t, "page is the cited work", res.Message)
	assert.Equal(t, 2, client.calls)
}

func TestChainURLCheckFailureKeepsSearchOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := &scriptedClient{replies: []string{verdictJSON("unverified", "results describe a different paper")}}
	c := testChain(client, fastVerifyConfig())
	c.Fetch = &fetch.Client{HTTP: srv.Client(), Cfg: types.FetchConfig{MaxContentBytes: 4096}}

	ref := testRef()
	ref.URL = srv.URL
	ref.SearchResults = []types.OrganicResult{{Title: "Unrelated", Link: "https://example.org/other", Snippet: "something else"}}

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusUnverified, res.Status, "dead URL is not evidence against the reference")
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, "results describe a different paper", res.Message)
}

func TestChainURLCheckSkippedWhenDisabled(t *testing.T) {
	cfg := fastVerifyConfig()
	cfg.EnableURLCheck = false
	client := &scriptedClient{replies: []string{verdictJSON("unverified", "no match")}}
	c := testChain(client, cfg)

	ref := testRef()
	ref.URL = "https://example.org/shannon1948"
	ref.SearchResults = []types.OrganicResult{{Title: "Unrelated", Link: "https://example.org/other", Snippet: "x"}}

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusUnverified, res.Status)
	assert.Equal(t, 1, client.calls)
}

func TestChainMalformedVerdictRetriedThenError(t *testing.T) {
	client := &scriptedClient{replies: []string{"this is not JSON", "still not JSON"}}
	c := testChain(client, fastVerifyConfig())

	ref := testRef()
	ref.SearchResults = []types.OrganicResult{{Title: "A Mathematical Theory of Communication", Link: "https://example.org/shannon1948", Snippet: "x"}}

	res := c.Verify(context.Background(), 0, ref)
	assert.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, 2, client.calls, "one attempt plus one retry")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Verdict
		wantErr bool
	}{
		{"plain", `{"status": "verified", "message": "ok"}`, Verdict{Status: "verified", Message: "ok"}, false},
		{"fenced", "```json\n{\"status\": \"unverified\", \"message\": \"no\"}\n```", Verdict{Status: "unverified", Message: "no"}, false},
		{"bad status", `{"status": "maybe", "message": "ok"}`, Verdict{}, true},
		{"missing message", `{"status": "verified"}`, Verdict{}, true},
		{"not json", "verified", Verdict{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
