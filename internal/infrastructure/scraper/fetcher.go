package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"tenderwatch/internal/ports"
)

const (
	userAgent   = "tenderwatch/1.0"
	maxBodySize = 5 << 20
)

// HTTPFetcher retrieves pages over HTTP and converts them to markdown-ish
// text for downstream classification.
type HTTPFetcher struct {
	httpClient *http.Client
	converter  *md.Converter
}

var _ ports.PageFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds a fetcher with the given request timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		converter:  md.NewConverter("", true, nil),
	}
}

// Fetch downloads one page. Non-2xx statuses are errors; callers treat any
// failure here as "page could not be scraped".
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (ports.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.Page{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ports.Page{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.Page{}, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return ports.Page{}, fmt.Errorf("read %s: %w", url, err)
	}

	html := string(body)
	return ports.Page{
		URL:  url,
		HTML: html,
		Text: f.toText(html),
	}, nil
}

// toText converts HTML to markdown, falling back to a plain goquery text dump
// when the converter rejects the document.
func (f *HTTPFetcher) toText(html string) string {
	if text, err := f.converter.ConvertString(html); err == nil {
		return text
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return strings.TrimSpace(doc.Text())
}
