package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"18:30", "18:30", true},
		{"9:05", "09:05", true},
		{" 21.15 ", "21:15", true},
		{"18:30*", "18:30", true},
		{"†20:00", "20:00", true},
		{"19:45[1]", "19:45", true},
		{"17:00²", "17:00", true},
		{"--:--", "", false},
		{"", "", false},
		{"24:00", "", false},
		{"12:60", "", false},
		{"tomorrow", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseClock(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeOneCandidatePerParseableShow(t *testing.T) {
	raw := RawRecord{
		Title:       "  Dune ",
		Category:    "Sci-Fi",
		Description: "Spice",
		ImageURL:    "https://x/poster.jpg",
		Shows: []ShowInfo{
			{Hour: "18:30", BookingLink: "https://x/abc"},
			{Hour: "--:--", BookingLink: "https://x/broken"},
			{Hour: "21:00*", BookingLink: ""},
		},
	}
	src := SourceContext{Chain: "multikino", City: "krakow", CinemaName: "Multikino krakow", Date: "2024-05-01"}

	got := Normalize(raw, src)

	require.Len(t, got, 2)
	assert.Equal(t, "Dune", got[0].Title)
	assert.Equal(t, "18:30", got[0].Time)
	assert.Equal(t, "https://x/abc", got[0].BookingLink)
	assert.Equal(t, "2024-05-01", got[0].Date)
	assert.Equal(t, "krakow", got[0].City)
	assert.Equal(t, "multikino", got[0].Chain)

	assert.Equal(t, "21:00", got[1].Time)
	assert.Empty(t, got[1].BookingLink)
}

func TestNormalizeUnparseableOnly(t *testing.T) {
	raw := RawRecord{Title: "Dune", Shows: []ShowInfo{{Hour: "--:--"}, {Hour: "soon"}}}
	assert.Empty(t, Normalize(raw, SourceContext{Date: "2024-05-01"}))
}

func TestNormalizeWithoutTitle(t *testing.T) {
	raw := RawRecord{Shows: []ShowInfo{{Hour: "18:30"}}}
	assert.Empty(t, Normalize(raw, SourceContext{Date: "2024-05-01"}))
}

func TestCinemaName(t *testing.T) {
	assert.Equal(t, "Multikino krakow", CinemaName("multikino", Location{City: "krakow"}))
	assert.Equal(t, "Helios krakow #2", CinemaName("helios", Location{City: "krakow", SiteIndex: 2}))
}
