// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves a reference's URL and reduces the page to plain
// text suitable for a model prompt: script/style blocks dropped, tags
// stripped, entities unescaped, whitespace collapsed, length capped.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/pdiddy/refcheck/internal/httputil"
	"github.com/pdiddy/refcheck/pkg/types"
)

// maxRawBytes bounds how much of the response body is read before
// sanitizing, regardless of the configured content cap.
const maxRawBytes = 512 * 1024

// Client fetches and sanitizes web pages.
type Client struct {
	HTTP *http.Client
	Cfg  types.FetchConfig
}

// Page fetches the URL and returns sanitized plain text. Only HTML, plain
// text, and JSON responses are accepted; anything else (PDFs, images) is an
// error.
func (c *Client) Page(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain, application/json")

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, 0)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: HTTP %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptedContentType(contentType) {
		return "", fmt.Errorf("fetching %s: unsupported content type %q", rawURL, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", rawURL, err)
	}

	text := string(body)
	if strings.Contains(contentType, "text/html") {
		text = StripHTML(text)
	} else {
		text = collapseWhitespace(text)
	}

	cap := c.Cfg.MaxContentBytes
	if cap <= 0 {
		cap = 15 * 1024
	}
	if len(text) > cap {
		text = text[:cap]
	}
	return text, nil
}

// acceptedContentType allows HTML, plain text, and JSON responses.
func acceptedContentType(ct string) bool {
	for _, allowed := range []string{"text/html", "text/plain", "application/json"} {
		if strings.Contains(ct, allowed) {
			return true
		}
	}
	return false
}

// StripHTML reduces an HTML document to its visible text. Script and style
// subtrees are skipped entirely; the tokenizer unescapes entities.
func StripHTML(doc string) string {
	tok := html.NewTokenizer(strings.NewReader(doc))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// skippedTag lists subtrees whose text is never page content.
func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript", "iframe":
		return true
	}
	return false
}

// collapseWhitespace joins all whitespace runs into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
