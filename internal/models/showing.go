package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// DateLayout is the storage format of Showing.Date.
	DateLayout = "2006-01-02"
	// TimeLayout is the storage format of Showing.Time.
	TimeLayout = "15:04"
)

// Showing is a single screening. NaturalKey is a digest of the booking link
// when one exists and of the (film, cinema, date, time) slot otherwise, so a
// single unique index covers both identities on every supported database.
type Showing struct {
	ID          uint      `gorm:"primaryKey" json:"id" example:"1"`
	NaturalKey  string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	FilmID      uint      `gorm:"not null;index" json:"film_id"`
	Film        *Film     `gorm:"foreignKey:FilmID" json:"film,omitempty"`
	CinemaID    uint      `gorm:"not null;index" json:"cinema_id"`
	Cinema      *Cinema   `gorm:"foreignKey:CinemaID" json:"cinema,omitempty"`
	Date        string    `gorm:"size:10;not null;index" json:"date" example:"2024-05-01"`
	Time        string    `gorm:"size:5;not null" json:"time" example:"18:30"`
	BookingLink *string   `gorm:"size:2000" json:"booking_link,omitempty" example:"https://multikino.pl/rezerwacja/abc"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Showing) TableName() string {
	return "showings"
}

// ShowingKey builds the natural key for a showing.
func ShowingKey(bookingLink string, filmID, cinemaID uint, date, clock string) string {
	raw := "link:" + bookingLink
	if bookingLink == "" {
		raw = fmt.Sprintf("slot:%d|%d|%s|%s", filmID, cinemaID, date, clock)
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ShowingCandidate is a normalized, not yet persisted showing produced from
// one (showtime, booking link) pair of a scraped listing item.
type ShowingCandidate struct {
	Chain       string
	City        string
	SiteIndex   int
	CinemaName  string
	SourceURL   string
	Title       string
	Category    string
	Description string
	ImageURL    string
	DetailURL   string
	Date        string
	Time        string
	BookingLink string
}

// ShowingFilter narrows showing listings for the query API.
type ShowingFilter struct {
	City  string
	Chain string
	Date  string
	Page  int
	Limit int
}
