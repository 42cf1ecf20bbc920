package models

import "time"

// Cinema is identified by (chain, city, site_index). SiteIndex is 0 for
// chains that do not number their venues.
type Cinema struct {
	ID        uint      `gorm:"primaryKey" json:"id" example:"1"`
	Chain     string    `gorm:"size:64;not null;uniqueIndex:idx_cinema_natural_key,priority:1" json:"chain" example:"multikino"`
	City      string    `gorm:"size:128;not null;uniqueIndex:idx_cinema_natural_key,priority:2;index" json:"city" example:"krakow"`
	SiteIndex int       `gorm:"not null;default:0;uniqueIndex:idx_cinema_natural_key,priority:3" json:"site_index" example:"0"`
	Name      string    `gorm:"size:255" json:"name" example:"Multikino Kraków"`
	Address   string    `gorm:"size:512" json:"address,omitempty"`
	SourceURL string    `gorm:"size:2000" json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Cinema) TableName() string {
	return "cinemas"
}
