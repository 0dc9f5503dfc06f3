// Package phivolcs scrapes the regional authority's earthquake bulletin
// page. The page is an HTML table with no contractual structure, so row
// extraction tries selectors from most to least specific, and everything
// row-level degrades to a counted skip rather than an error.
package phivolcs

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

// userAgent mimics a desktop browser; the bulletin site rejects obvious
// bot agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// rowSelectors are tried in order of specificity. The upstream page layout
// has changed before; the named table is current, the rest are fallbacks.
var rowSelectors = []string{
	"table#quakeinfo tbody tr",
	"table tbody tr",
	"table tr",
}

// Scraper fetches and parses the bulletin page.
type Scraper struct {
	httpClient *http.Client
	url        string
	attempts   int
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewScraper creates a bulletin scraper. attempts is the total number of
// tries on timeout (minimum 1); there is no delay between attempts.
//
// TLS certificate verification is disabled for this client. The bulletin
// host serves an incomplete certificate chain, and this exception is scoped
// to this single endpoint — it is not a general HTTP policy.
func NewScraper(rawURL string, timeout time.Duration, attempts int, clock clockwork.Clock, logger *slog.Logger) *Scraper {
	if attempts < 1 {
		attempts = 1
	}
	return &Scraper{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // documented single-host exception
			},
		},
		url:      rawURL,
		attempts: attempts,
		clock:    clock,
		logger:   logger,
	}
}

// Fetch retrieves the bulletin page and returns the normalized events from
// the last 24 hours. Timeouts are retried up to the configured attempt
// count; any other failure aborts immediately.
func (s *Scraper) Fetch(ctx context.Context) ([]domain.Event, error) {
	doc, err := s.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	rows := findRows(doc)
	if rows == nil {
		s.logger.Warn("no table rows found on bulletin page", "url", s.url)
		return nil, nil
	}

	fetchedAt := s.clock.Now()
	var events []domain.Event
	var skippedOld, skippedInvalid int

	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			skippedInvalid++
			return
		}

		rec := domain.ScrapeRecord{
			DateTime: cellText(cells, 0),
			Lat:      cellText(cells, 1),
			Lon:      cellText(cells, 2),
			Depth:    cellText(cells, 3),
			Mag:      cellText(cells, 4),
		}
		if cells.Length() > 5 {
			rec.Location = cellText(cells, 5)
		}

		event, err := domain.NormalizeScrape(rec, fetchedAt)
		switch {
		case errors.Is(err, domain.ErrOutOfWindow):
			skippedOld++
			return
		case err != nil:
			skippedInvalid++
			return
		}

		event.DetailURL = s.url
		events = append(events, event)
	})

	s.logger.Info("bulletin scrape complete",
		"events", len(events),
		"skipped_old", skippedOld,
		"skipped_invalid", skippedInvalid,
	)
	return events, nil
}

// fetchDocument GETs the bulletin page, retrying timeouts without delay.
func (s *Scraper) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		doc, err := s.fetchOnce(ctx)
		if err == nil {
			return doc, nil
		}
		if !isTimeout(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("bulletin fetch timed out", "attempt", attempt, "of", s.attempts)
	}
	return nil, fmt.Errorf("bulletin fetch failed after %d attempts: %w", s.attempts, lastErr)
}

func (s *Scraper) fetchOnce(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bulletin request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bulletin page error: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse bulletin page: %w", err)
	}
	return doc, nil
}

// findRows returns the first selector match that yields rows, or nil.
func findRows(doc *goquery.Document) *goquery.Selection {
	for _, sel := range rowSelectors {
		if rows := doc.Find(sel); rows.Length() > 0 {
			return rows
		}
	}
	return nil
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
