// Package ingest turns raw source material — a URL or pasted text — into
// the title/text/claims triple the cycle controller seeds a session with.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var (
	scriptTag  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag   = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	titleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	anyTag     = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Fetcher retrieves and cleans a URL's text content.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher constructs a Fetcher with a bounded timeout, matching the
// grounding file's own 30-second client timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads url and returns its cleaned text and page title.
func (f *Fetcher) Fetch(ctx context.Context, url string) (text, title string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("reading response body: %w", err)
	}

	html := string(body)
	return cleanHTML(html), extractTitle(html), nil
}

// cleanHTML strips script/style blocks and tags, collapsing whitespace down
// to a single space-separated run of text.
func cleanHTML(html string) string {
	html = scriptTag.ReplaceAllString(html, "")
	html = styleTag.ReplaceAllString(html, "")
	text := anyTag.ReplaceAllString(html, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func extractTitle(html string) string {
	m := titleTag.FindStringSubmatch(html)
	if m == nil {
		return "Untitled"
	}
	return strings.TrimSpace(m[1])
}
