// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package doi resolves DOIs against the Crossref registry and returns
// canonical bibliographic metadata, independent of web search.
package doi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/refcheck/internal/httputil"
	"github.com/pdiddy/refcheck/pkg/types"
)

// crossrefAPIBase is the Crossref works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// ErrNotFound indicates the registry has no record for the DOI.
var ErrNotFound = errors.New("doi not found")

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/[^\s]+$`)

// Valid reports whether s looks like a DOI. The optional "doi:" or
// "https://doi.org/" prefix is accepted.
func Valid(s string) bool {
	return doiPattern.MatchString(Normalize(s))
}

// Normalize strips the "doi:" prefix or a doi.org URL wrapper and trims
// whitespace, returning the bare identifier.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "doi:")
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}

// Work is the canonical record for a resolved DOI.
type Work struct {
	Title     string `json:"title" yaml:"title"`
	Publisher string `json:"publisher" yaml:"publisher"`
	URL       string `json:"url" yaml:"url"`
}

// Client resolves DOIs via the Crossref REST API.
type Client struct {
	HTTP *http.Client
	Cfg  types.DOIConfig
}

// Resolve looks up a DOI and returns its canonical title, publisher, and
// URL. Returns ErrNotFound when the registry has no record.
func (c *Client) Resolve(ctx context.Context, doi string) (Work, error) {
	doi = Normalize(doi)
	if !doiPattern.MatchString(doi) {
		return Work{}, fmt.Errorf("malformed DOI %q", doi)
	}

	base := c.Cfg.BaseURL
	if base == "" {
		base = crossrefAPIBase
	}
	reqURL := base + url.PathEscape(doi)
	if c.Cfg.MailTo != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.Cfg.MailTo)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Work{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 0)
	if err != nil {
		return Work{}, fmt.Errorf("Crossref API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Work{}, fmt.Errorf("%q: %w", doi, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return Work{}, fmt.Errorf("Crossref API returned HTTP %d", resp.StatusCode)
	}

	var cr crossrefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Work{}, fmt.Errorf("parsing Crossref response: %w", err)
	}

	work := Work{
		Publisher: cr.Message.Publisher,
		URL:       cr.Message.URL,
	}
	if len(cr.Message.Title) > 0 {
		work.Title = cr.Message.Title[0]
	}
	if work.URL == "" {
		work.URL = "https://doi.org/" + doi
	}
	return work, nil
}

// Crossref API JSON structures.
type crossrefResponse struct {
	Message crossrefMessage `json:"message"`
}

type crossrefMessage struct {
	Title     []string `json:"title"`
	Publisher string   `json:"publisher"`
	URL       string   `json:"URL"`
}
