// Package scraper holds the per-chain source adapters, the shared extraction
// engine they are built on and the normalization of scraped records.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"showtime-scraper/internal/browser"

	"github.com/sirupsen/logrus"
)

// Location addresses one listing page. Multikino pages are keyed by city and
// calendar date, Helios pages by city, site index and day offset from today.
type Location struct {
	City      string
	Date      string
	DayOffset int
	SiteIndex int
}

// ShowInfo is one showtime entry of a listing item as it appears on the page.
type ShowInfo struct {
	Hour        string
	BookingLink string
}

// RawRecord is one film item of a listing page before normalization.
type RawRecord struct {
	Title       string
	Category    string
	Description string
	ImageURL    string
	DetailURL   string
	Shows       []ShowInfo
}

// Adapter extracts raw listing records for one cinema chain.
type Adapter interface {
	Chain() string
	URL(loc Location) string
	// Fetch returns the records of one location. A page whose content never
	// rendered yields no records and no error; navigation, driver and session
	// failures are returned.
	Fetch(ctx context.Context, loc Location) ([]RawRecord, error)
}

// SnapshotStore archives rendered pages.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, body []byte) error
}

// SnapshotKey is the object key a rendered page is archived under.
func SnapshotKey(chain string, loc Location) string {
	city := loc.City
	if loc.SiteIndex > 0 {
		city = fmt.Sprintf("%s-%d", loc.City, loc.SiteIndex)
	}
	return fmt.Sprintf("%s/%s/%s.html", chain, city, loc.Date)
}

// pageFetcher is the render-then-extract pipeline both adapters delegate to.
type pageFetcher struct {
	chain     string
	base      *url.URL
	renderer  browser.Renderer
	rules     ExtractRules
	wait      time.Duration
	snapshots SnapshotStore
	logger    *logrus.Logger
}

func newPageFetcher(chain, base string, renderer browser.Renderer, rules ExtractRules, opts Options) (*pageFetcher, error) {
	baseURL, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid %s base url %q", chain, base)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	wait := opts.WaitTimeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	return &pageFetcher{
		chain:     chain,
		base:      baseURL,
		renderer:  renderer,
		rules:     rules,
		wait:      wait,
		snapshots: opts.Snapshots,
		logger:    logger,
	}, nil
}

func (p *pageFetcher) fetch(ctx context.Context, loc Location, pageURL string) ([]RawRecord, error) {
	log := p.logger.WithFields(logrus.Fields{
		"chain": p.chain,
		"city":  loc.City,
		"date":  loc.Date,
		"url":   pageURL,
	})

	var html string
	err := browser.WithSession(ctx, p.renderer, func(s browser.Session) error {
		var renderErr error
		html, renderErr = s.Render(ctx, pageURL, p.rules.Marker, p.wait)
		return renderErr
	})
	if errors.Is(err, browser.ErrMarkerTimeout) {
		log.WithError(err).Warn("Listing did not render, treating page as empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	p.archive(ctx, loc, html, log)

	records, err := p.rules.Extract(html, p.base, log)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", pageURL, err)
	}
	log.WithField("records", len(records)).Debug("Listing extracted")
	return records, nil
}

func (p *pageFetcher) archive(ctx context.Context, loc Location, html string, log *logrus.Entry) {
	if p.snapshots == nil {
		return
	}
	key := SnapshotKey(p.chain, loc)
	if err := p.snapshots.PutSnapshot(ctx, key, []byte(html)); err != nil {
		log.WithError(err).WithField("key", key).Warn("Failed to archive page snapshot")
	}
}

// Options configures an adapter. Zero values fall back to defaults.
type Options struct {
	WaitTimeout time.Duration
	Snapshots   SnapshotStore
	Logger      *logrus.Logger
}
