package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/internal/chunker"
	"github.com/johnyohanyoon/alfred-ai/models"
)

// Scraper fetches pages and extracts readable text and same-domain links.
// Stateless and safe for concurrent use.
type Scraper struct {
	cfg        config.ScraperConfig
	httpClient *http.Client
	logger     *log.Logger
}

func New(cfg config.ScraperConfig, logger *log.Logger) *Scraper {
	if logger == nil {
		logger = log.New(log.Writer(), "[SCRAPE] ", log.LstdFlags)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch retrieves one URL and extracts its readable text content. Network
// errors, HTTP errors, and non-text content types fail with models.ErrFetch;
// the caller reports them per URL without aborting the batch.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (models.Document, error) {
	u, err := nurl.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return models.Document{}, fmt.Errorf("%w: not an http(s) URL: %s", models.ErrInvalidInput, rawURL)
	}

	body, err := s.get(ctx, rawURL)
	if err != nil {
		return models.Document{}, err
	}

	article, err := readability.FromReader(strings.NewReader(body), u)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: extract %s: %v", models.ErrFetch, rawURL, err)
	}
	text := chunker.Normalize(article.TextContent)

	// JS-heavy pages often yield next to nothing from a plain fetch; retry
	// through a headless browser when enabled.
	if s.cfg.RenderFallback && len(text) < s.cfg.RenderMinChars {
		if rendered, rerr := s.render(ctx, rawURL); rerr == nil {
			if a2, e2 := readability.FromReader(strings.NewReader(rendered), u); e2 == nil {
				if t2 := chunker.Normalize(a2.TextContent); len(t2) > len(text) {
					article = a2
					text = t2
				}
			}
		} else {
			s.logger.Printf("render fallback failed for %s: %v", rawURL, rerr)
		}
	}

	if text == "" {
		return models.Document{}, fmt.Errorf("%w: no text content at %s", models.ErrFetch, rawURL)
	}

	s.logger.Printf("fetched %d chars from %s", len(text), rawURL)
	return models.Document{
		URL:       rawURL,
		Text:      text,
		Title:     strings.TrimSpace(article.Title),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// ExtractLinks fetches the base page and returns deduplicated same-domain
// links found in it, capped at the configured bulk limit. The base URL
// itself is always first.
func (s *Scraper) ExtractLinks(ctx context.Context, baseURL string) ([]string, error) {
	base, err := nurl.Parse(baseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("%w: not an http(s) URL: %s", models.ErrInvalidInput, baseURL)
	}

	body, err := s.get(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{baseURL: true}
	links := []string{baseURL}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", models.ErrFetch, baseURL, err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(links) >= s.cfg.MaxBulkLinks {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := nurl.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					continue
				}
				resolved := base.ResolveReference(ref)
				if resolved.Scheme != "http" && resolved.Scheme != "https" {
					continue
				}
				if resolved.Host != base.Host {
					continue
				}
				resolved.Fragment = ""
				link := resolved.String()
				if !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	s.logger.Printf("found %d links on %s", len(links), baseURL)
	return links, nil
}

func (s *Scraper) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrFetch, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", models.ErrFetch, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: get %s: status %d", models.ErrFetch, url, resp.StatusCode)
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype != "" && !strings.Contains(ctype, "text/html") && !strings.Contains(ctype, "text/plain") {
		return "", fmt.Errorf("%w: %s has unsupported content type %q", models.ErrFetch, url, ctype)
	}

	maxBytes := s.cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", models.ErrFetch, url, err)
	}
	return string(raw), nil
}

// render loads the page in a headless browser and returns the settled HTML.
func (s *Scraper) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var out string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &out, chromedp.ByQuery),
	)
	return out, err
}
