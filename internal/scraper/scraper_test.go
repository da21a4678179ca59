package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/johnyohanyoon/alfred-ai/config"
	"github.com/johnyohanyoon/alfred-ai/models"
)

func testScraper() *Scraper {
	return New(config.ScraperConfig{
		UserAgent:    "alfred-test",
		Timeout:      2 * time.Second,
		MaxBodyBytes: 1 << 20,
		MaxBulkLinks: 10,
		MaxParallel:  2,
	}, nil)
}

const samplePage = `<!DOCTYPE html>
<html><head><title>Firewall Guide</title></head>
<body>
<article>
<h1>Firewall Guide</h1>
<p>To configure the firewall, open the settings panel and add a rule for each
port you need. Rules are evaluated top to bottom, and the first match wins.
Keep the default deny rule at the bottom of the list.</p>
<p>After saving, reload the service so the new rules take effect. You can
verify the active ruleset from the status page at any time.</p>
</article>
</body></html>`

func TestFetchExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "alfred-test" {
			t.Errorf("expected configured user agent, got %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	doc, err := testScraper().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "configure the firewall") {
		t.Fatalf("expected extracted text, got %q", doc.Text)
	}
	if strings.Contains(doc.Text, "<p>") {
		t.Fatalf("markup must be stripped, got %q", doc.Text)
	}
	if doc.URL != srv.URL || doc.FetchedAt.IsZero() {
		t.Fatalf("document metadata incomplete: %+v", doc)
	}
}

func TestFetchRejectsNonTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	_, err := testScraper().Fetch(context.Background(), srv.URL)
	if !errors.Is(err, models.ErrFetch) {
		t.Fatalf("expected ErrFetch for non-text content, got %v", err)
	}
}

func TestFetchHTTPErrorIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := testScraper().Fetch(context.Background(), srv.URL)
	if !errors.Is(err, models.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := testScraper().Fetch(context.Background(), "ftp://example.com")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-http scheme, got %v", err)
	}
}

func TestExtractLinksSameDomainDeduplicated(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body>
			<a href="/docs/install">Install</a>
			<a href="/docs/install">Install again</a>
			<a href="/docs/config#section">Config</a>
			<a href="%s/docs/api">API</a>
			<a href="https://elsewhere.test/off-site">Off site</a>
			<a href="mailto:team@example.com">Mail</a>
		</body></html>`, srvURL)
	}))
	defer srv.Close()
	srvURL = srv.URL

	links, err := testScraper().ExtractLinks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		srv.URL,
		srv.URL + "/docs/install",
		srv.URL + "/docs/config",
		srv.URL + "/docs/api",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d: %#v", len(want), len(links), links)
	}
	for i, link := range want {
		if links[i] != link {
			t.Fatalf("link %d: got %q, want %q", i, links[i], link)
		}
	}
}

func TestExtractLinksHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 50; i++ {
			fmt.Fprintf(w, `<a href="/page-%d">p%d</a>`, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	defer srv.Close()

	s := New(config.ScraperConfig{
		UserAgent:    "alfred-test",
		Timeout:      2 * time.Second,
		MaxBulkLinks: 5,
		MaxParallel:  2,
	}, nil)

	links, err := s.ExtractLinks(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 5 {
		t.Fatalf("expected limit of 5 links, got %d", len(links))
	}
}
