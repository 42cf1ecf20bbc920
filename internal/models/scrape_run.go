package models

import "time"

// Sweep outcomes.
const (
	RunStatusRunning         = "running"
	RunStatusSucceeded       = "succeeded"
	RunStatusPartiallyFailed = "partially_failed"
)

// ScrapeRun records one sweep of a chain.
type ScrapeRun struct {
	ID              uint       `gorm:"primaryKey" json:"id" example:"1"`
	RunID           string     `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Chain           string     `gorm:"size:64;index;not null" json:"chain" example:"multikino"`
	ScrapeDate      string     `gorm:"size:10;index" json:"scrape_date" example:"2024-05-01"`
	Status          string     `gorm:"size:32;index" json:"status" example:"succeeded"`
	PairsTotal      int        `json:"pairs_total"`
	PairsFailed     int        `json:"pairs_failed"`
	PairsSkipped    int        `json:"pairs_skipped"`
	RecordsScraped  int        `json:"records_scraped"`
	ShowingsAdded   int        `json:"showings_added"`
	ShowingsSkipped int        `json:"showings_skipped"`
	ErrorMessage    string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt       time.Time  `gorm:"index" json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (ScrapeRun) TableName() string {
	return "scrape_runs"
}
