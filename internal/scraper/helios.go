package scraper

import (
	"context"
	"fmt"
	"net/url"

	"showtime-scraper/internal/browser"
)

// ChainHelios is the chain name used in the matrix and in stored cinemas.
const ChainHelios = "helios"

var heliosRules = ExtractRules{
	Marker:      "ul.seances-list",
	Item:        "ul.seances-list > li",
	Title:       "h2.movie-title a",
	Category:    ".movie-genre",
	Description: ".movie-description",
	Image:       ".movie-poster img",
	Detail:      "h2.movie-title a",
	Showtime:    "ul.hours li",
	Hour:        "a",
	Booking:     "a",
}

// HeliosAdapter reads one numbered cinema's schedule for a day offset.
type HeliosAdapter struct {
	page *pageFetcher
}

func NewHeliosAdapter(base string, renderer browser.Renderer, opts Options) (*HeliosAdapter, error) {
	page, err := newPageFetcher(ChainHelios, base, renderer, heliosRules, opts)
	if err != nil {
		return nil, err
	}
	return &HeliosAdapter{page: page}, nil
}

func (a *HeliosAdapter) Chain() string {
	return ChainHelios
}

func (a *HeliosAdapter) URL(loc Location) string {
	return fmt.Sprintf("%s/%d,%s/Repertuar/index/dzien/%d/kino/%d",
		a.page.base.String(), loc.SiteIndex, url.PathEscape(loc.City), loc.DayOffset, loc.SiteIndex)
}

func (a *HeliosAdapter) Fetch(ctx context.Context, loc Location) ([]RawRecord, error) {
	if loc.SiteIndex < 1 {
		return nil, fmt.Errorf("helios location %s has no site index", loc.City)
	}
	return a.page.fetch(ctx, loc, a.URL(loc))
}
