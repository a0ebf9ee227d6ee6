// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries a web search API and returns organic results for
// a reference query.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/refcheck/internal/httputil"
	"github.com/pdiddy/refcheck/pkg/types"
)

// serperAPIBase is the Serper search endpoint. Declared as a var so tests
// can substitute an httptest server.
var serperAPIBase = "https://google.serper.dev/search"

// Client queries the Serper web search API.
type Client struct {
	HTTP *http.Client
	Cfg  types.WebSearchConfig
}

// Search runs the query and returns the organic results, capped at
// cfg.MaxResults. An empty result set is not an error; callers decide what
// absence of results means.
func (c *Client) Search(ctx context.Context, query string) ([]types.OrganicResult, error) {
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	body, err := json.Marshal(serperRequest{Q: query})
	if err != nil {
		return nil, fmt.Errorf("marshaling search request: %w", err)
	}

	endpoint := c.Cfg.BaseURL
	if endpoint == "" {
		endpoint = serperAPIBase
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	req.Header.Set("X-API-KEY", c.Cfg.APIKey)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 0)
	if err != nil {
		return nil, fmt.Errorf("search API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned HTTP %d", resp.StatusCode)
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	maxResults := c.Cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	var results []types.OrganicResult
	for _, item := range sr.Organic {
		if len(results) >= maxResults {
			break
		}
		results = append(results, types.OrganicResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}
	return results, nil
}

// BuildQuery synthesizes a search query from a reference's title, authors,
// and year. The title is quoted so the engine matches it as a phrase.
func BuildQuery(ref types.Reference) string {
	var buf bytes.Buffer
	if ref.Title != "" {
		fmt.Fprintf(&buf, "%q", ref.Title)
	}
	for i, a := range ref.Authors {
		if i >= 2 {
			break
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(a)
	}
	if ref.Year != "" {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(ref.Year)
	}
	return buf.String()
}

// Serper API JSON structures.
type serperRequest struct {
	Q string `json:"q"`
}

type serperResponse struct {
	Organic []serperOrganic `json:"organic"`
}

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
