package models

import "time"

// Film is identified by its title. Optional fields are only written when the
// row is first created.
type Film struct {
	ID          uint      `gorm:"primaryKey" json:"id" example:"1"`
	Title       string    `gorm:"size:255;not null;uniqueIndex" json:"title" example:"Dune"`
	Category    string    `gorm:"size:255" json:"category,omitempty" example:"Sci-Fi"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string    `gorm:"size:2000" json:"image_url,omitempty"`
	DetailURL   string    `gorm:"size:2000" json:"detail_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Film) TableName() string {
	return "films"
}
