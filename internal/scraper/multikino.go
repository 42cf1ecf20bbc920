package scraper

import (
	"context"
	"fmt"
	"net/url"

	"showtime-scraper/internal/browser"
)

// ChainMultikino is the chain name used in the matrix and in stored cinemas.
const ChainMultikino = "multikino"

var multikinoRules = ExtractRules{
	Marker:      ".filmlist__item",
	Item:        ".filmlist__item",
	Title:       ".filmlist__info-txt span",
	Category:    "a.film-details__item",
	Description: "p.filmlist__synopsis--twoLines",
	Image:       "img",
	Detail:      "a.filmlist__info-txt",
	Showtime:    "li.times__detail",
	Hour:        "time.default",
	Booking:     "a",
}

// MultikinoAdapter reads the per-city "now playing" listing for a date.
type MultikinoAdapter struct {
	page *pageFetcher
}

func NewMultikinoAdapter(base string, renderer browser.Renderer, opts Options) (*MultikinoAdapter, error) {
	page, err := newPageFetcher(ChainMultikino, base, renderer, multikinoRules, opts)
	if err != nil {
		return nil, err
	}
	return &MultikinoAdapter{page: page}, nil
}

func (a *MultikinoAdapter) Chain() string {
	return ChainMultikino
}

func (a *MultikinoAdapter) URL(loc Location) string {
	return fmt.Sprintf("%s/repertuar/%s/teraz-gramy?data=%s",
		a.page.base.String(), url.PathEscape(loc.City), url.QueryEscape(loc.Date))
}

func (a *MultikinoAdapter) Fetch(ctx context.Context, loc Location) ([]RawRecord, error) {
	return a.page.fetch(ctx, loc, a.URL(loc))
}
