// Package preview fetches Open Graph link previews for URLs posted in chat.
// Fetches are best effort: any failure yields a nil preview, never an error
// surfaced to the sender.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// maxBodyBytes caps how much of the page is read while looking for meta tags.
	maxBodyBytes = 50_000
	userAgent    = "Mozilla/5.0 (clinkchat-preview)"

	maxTitleLen = 100
	maxMetaLen  = 200
)

// Preview holds the Open Graph fields extracted from a page.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// Fetcher retrieves and caches link previews.
type Fetcher struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]*Preview
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  make(map[string]*Preview),
	}
}

// Fetch returns the preview for rawURL, or nil if the page yields no usable
// title or description. Successful results are cached per URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Preview {
	f.mu.Lock()
	if cached, ok := f.cache[rawURL]; ok {
		f.mu.Unlock()
		return cached
	}
	f.mu.Unlock()

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil && len(body) == 0 {
		return nil
	}
	html := string(body)

	p := &Preview{
		URL:         rawURL,
		Title:       firstOf(metaContent(html, "og:title"), truncate(titleTag(html), maxTitleLen)),
		Image:       metaContent(html, "og:image"),
		Description: firstOf(metaContent(html, "og:description"), metaContent(html, "description")),
	}
	if p.Title == "" && p.Description == "" {
		return nil
	}

	f.mu.Lock()
	f.cache[rawURL] = p
	f.mu.Unlock()
	return p
}

var titleRe = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

func titleTag(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// metaContent finds <meta property|name="prop" content="..."> in either
// attribute order.
func metaContent(html, prop string) string {
	quoted := regexp.QuoteMeta(prop)
	propFirst := regexp.MustCompile(fmt.Sprintf(
		`(?i)<meta[^>]+(?:property|name)=["']%s["'][^>]+content=["']([^"']+)["']`, quoted))
	if m := propFirst.FindStringSubmatch(html); m != nil {
		return truncate(m[1], maxMetaLen)
	}
	contentFirst := regexp.MustCompile(fmt.Sprintf(
		`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+(?:property|name)=["']%s["']`, quoted))
	if m := contentFirst.FindStringSubmatch(html); m != nil {
		return truncate(m[1], maxMetaLen)
	}
	return ""
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
