package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"showtime-scraper/internal/models"

	"github.com/sirupsen/logrus"
)

// SourceContext carries what a page does not say about itself: which chain,
// venue and calendar date it was fetched for.
type SourceContext struct {
	Chain      string
	City       string
	SiteIndex  int
	CinemaName string
	SourceURL  string
	Date       string
}

var (
	footnotePattern = regexp.MustCompile(`\[[^\]]*\]|\(\d+\)|[*†‡⁰¹²³⁴⁵⁶⁷⁸⁹]`)
	clockPattern    = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})$`)
)

// ParseClock cleans a scraped hour and returns it as HH:MM.
func ParseClock(raw string) (string, bool) {
	cleaned := footnotePattern.ReplaceAllString(raw, "")
	cleaned = strings.Join(strings.Fields(cleaned), "")

	m := clockPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

// Normalize expands one raw record into a candidate per showtime with a
// parseable hour.
func Normalize(raw RawRecord, src SourceContext) []models.ShowingCandidate {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}

	candidates := make([]models.ShowingCandidate, 0, len(raw.Shows))
	for _, show := range raw.Shows {
		clock, ok := ParseClock(show.Hour)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"chain": src.Chain,
				"city":  src.City,
				"title": title,
				"hour":  show.Hour,
			}).Debug("Dropping showtime with unparseable hour")
			continue
		}
		candidates = append(candidates, models.ShowingCandidate{
			Chain:       src.Chain,
			City:        src.City,
			SiteIndex:   src.SiteIndex,
			CinemaName:  src.CinemaName,
			SourceURL:   src.SourceURL,
			Title:       title,
			Category:    strings.TrimSpace(raw.Category),
			Description: strings.TrimSpace(raw.Description),
			ImageURL:    strings.TrimSpace(raw.ImageURL),
			DetailURL:   strings.TrimSpace(raw.DetailURL),
			Date:        src.Date,
			Time:        clock,
			BookingLink: strings.TrimSpace(show.BookingLink),
		})
	}
	return candidates
}

// CinemaName is the display name given to a venue first seen while scraping.
func CinemaName(chain string, loc Location) string {
	name := chain
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	name += " " + loc.City
	if loc.SiteIndex > 0 {
		name += fmt.Sprintf(" #%d", loc.SiteIndex)
	}
	return name
}
