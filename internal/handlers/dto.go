package handlers

import "showtime-scraper/internal/models"

// ShowingResponse is the flattened listing row returned by the query API.
type ShowingResponse struct {
	ID          uint    `json:"id" example:"1"`
	Date        string  `json:"date" example:"2024-05-01"`
	Time        string  `json:"time" example:"18:30"`
	BookingLink *string `json:"booking_link,omitempty"`
	FilmID      uint    `json:"film_id"`
	Title       string  `json:"title" example:"Dune"`
	Category    string  `json:"category,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	CinemaID    uint    `json:"cinema_id"`
	CinemaName  string  `json:"cinema_name" example:"Multikino krakow"`
	Chain       string  `json:"chain" example:"multikino"`
	City        string  `json:"city" example:"krakow"`
}

func toShowingResponses(showings []models.Showing) []ShowingResponse {
	out := make([]ShowingResponse, 0, len(showings))
	for _, s := range showings {
		row := ShowingResponse{
			ID:          s.ID,
			Date:        s.Date,
			Time:        s.Time,
			BookingLink: s.BookingLink,
			FilmID:      s.FilmID,
			CinemaID:    s.CinemaID,
		}
		if s.Film != nil {
			row.Title = s.Film.Title
			row.Category = s.Film.Category
			row.ImageURL = s.Film.ImageURL
		}
		if s.Cinema != nil {
			row.CinemaName = s.Cinema.Name
			row.Chain = s.Cinema.Chain
			row.City = s.Cinema.City
		}
		out = append(out, row)
	}
	return out
}

// TaskAccepted is returned when a background task has been queued.
type TaskAccepted struct {
	Kind  string `json:"kind" example:"sweep"`
	Chain string `json:"chain,omitempty" example:"multikino"`
}
