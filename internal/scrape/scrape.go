package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (compatible; AnyConvert/1.0)"

// Content selectors tried in order; the first non-empty match wins.
var contentSelectors = []string{"article", "main", ".content", ".post", ".entry"}

// Scraper fetches a web page and renders its text content as a Markdown
// file body. This is deliberately plain-text extraction under a Markdown
// title, not a structural HTML-to-Markdown conversion.
type Scraper struct {
	client *http.Client
}

func NewScraper(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Scraper{client: client}
}

// ValidateURL rejects anything that is not an absolute http(s) URL. Callers
// must run this before Fetch so invalid schemes never reach the network.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("URL is missing a host")
	}
	return nil
}

// Fetch downloads the page and returns its title and Markdown rendering.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) (title, markdown string, err error) {
	if err := ValidateURL(pageURL); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("failed to fetch URL: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse page: %w", err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled"
	}

	content := ""
	for _, selector := range contentSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			content = text
			break
		}
	}
	if content == "" {
		content = strings.TrimSpace(doc.Find("body").First().Text())
	}

	markdown = fmt.Sprintf("# %s\n\n%s\n\n%s", title, pageURL, content)
	return title, markdown, nil
}
