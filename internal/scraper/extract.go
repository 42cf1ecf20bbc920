package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// DefaultDescription is stored when a listing item carries no synopsis.
const DefaultDescription = "No description"

// ExtractRules are the CSS selectors describing one chain's listing markup.
// Field selectors are evaluated relative to an Item; Hour and Booking are
// evaluated relative to a Showtime element.
type ExtractRules struct {
	Marker      string
	Item        string
	Title       string
	Category    string
	Description string
	Image       string
	Detail      string
	Showtime    string
	// Hour selects the element holding the time text; empty means the
	// showtime element itself.
	Hour string
	// Booking selects the booking anchor; empty means the showtime element
	// itself when it is an anchor.
	Booking string
}

// Extract parses a rendered page into raw records. Items that fail to parse
// or have no title are skipped; the rest of the page is still returned.
func (r ExtractRules) Extract(html string, base *url.URL, log *logrus.Entry) ([]RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var records []RawRecord
	doc.Find(r.Item).Each(func(i int, item *goquery.Selection) {
		record, ok := r.extractItem(item, base, log.WithField("item", i))
		if ok {
			records = append(records, record)
		}
	})
	return records, nil
}

func (r ExtractRules) extractItem(item *goquery.Selection, base *url.URL, log *logrus.Entry) (record RawRecord, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.WithField("panic", rec).Warn("Skipping listing item that could not be parsed")
			ok = false
		}
	}()

	record.Title = collapse(item.Find(r.Title).First().Text())
	if record.Title == "" {
		log.Debug("Skipping listing item without title")
		return record, false
	}

	var categories []string
	item.Find(r.Category).Each(func(_ int, s *goquery.Selection) {
		if c := collapse(s.Text()); c != "" {
			categories = append(categories, c)
		}
	})
	record.Category = strings.Join(categories, ", ")

	record.Description = collapse(item.Find(r.Description).First().Text())
	if record.Description == "" {
		record.Description = DefaultDescription
	}

	if r.Image != "" {
		img := item.Find(r.Image).First()
		src, _ := img.Attr("src")
		if strings.TrimSpace(src) == "" || strings.HasPrefix(src, "data:") {
			src, _ = img.Attr("data-src")
		}
		record.ImageURL = resolve(base, src)
	}
	if r.Detail != "" {
		href, _ := item.Find(r.Detail).First().Attr("href")
		record.DetailURL = resolve(base, href)
	}

	item.Find(r.Showtime).Each(func(_ int, show *goquery.Selection) {
		hourSel := show
		if r.Hour != "" {
			hourSel = show.Find(r.Hour).First()
		}
		hour := collapse(hourSel.Text())
		if hour == "" {
			return
		}

		linkSel := show
		if r.Booking != "" {
			linkSel = show.Find(r.Booking).First()
		}
		href, _ := linkSel.Attr("href")
		record.Shows = append(record.Shows, ShowInfo{
			Hour:        hour,
			BookingLink: resolve(base, href),
		})
	})
	return record, true
}

// resolve turns a possibly relative href into an absolute URL against base.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
