package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"showtime-scraper/internal/models"
	"showtime-scraper/internal/repository"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidCandidate is returned for candidates missing an identity field.
	ErrInvalidCandidate = errors.New("invalid showing candidate")
	ErrInvalidFilter    = errors.New("invalid filter")
)

type ReconcilerService interface {
	// Upsert stores the candidate's cinema, film and showing, reusing rows
	// that already exist. It reports whether a new showing was written.
	Upsert(ctx context.Context, candidate models.ShowingCandidate) (*models.Showing, bool, error)
	// PruneStale deletes showings dated strictly before today's calendar date.
	PruneStale(ctx context.Context, today time.Time) (int64, error)
}

type reconcilerService struct {
	cinemaRepo  repository.CinemaRepository
	filmRepo    repository.FilmRepository
	showingRepo repository.ShowingRepository
	ids         *cache.Cache
	logger      *logrus.Logger
}

func NewReconcilerService(cinemaRepo repository.CinemaRepository, filmRepo repository.FilmRepository, showingRepo repository.ShowingRepository, logger *logrus.Logger) ReconcilerService {
	return &reconcilerService{
		cinemaRepo:  cinemaRepo,
		filmRepo:    filmRepo,
		showingRepo: showingRepo,
		ids:         cache.New(30*time.Minute, 10*time.Minute),
		logger:      logger,
	}
}

func (s *reconcilerService) Upsert(ctx context.Context, c models.ShowingCandidate) (*models.Showing, bool, error) {
	if c.Chain == "" || c.City == "" || c.Title == "" || c.Date == "" || c.Time == "" {
		return nil, false, fmt.Errorf("%w: chain, city, title, date and time are required", ErrInvalidCandidate)
	}
	if _, err := time.Parse(models.DateLayout, c.Date); err != nil {
		return nil, false, fmt.Errorf("%w: date %q", ErrInvalidCandidate, c.Date)
	}
	if _, err := time.Parse(models.TimeLayout, c.Time); err != nil {
		return nil, false, fmt.Errorf("%w: time %q", ErrInvalidCandidate, c.Time)
	}

	cinemaID, err := s.cinemaID(ctx, c)
	if err != nil {
		return nil, false, err
	}
	filmID, err := s.filmID(ctx, c)
	if err != nil {
		return nil, false, err
	}

	showing := &models.Showing{
		NaturalKey: models.ShowingKey(c.BookingLink, filmID, cinemaID, c.Date, c.Time),
		FilmID:     filmID,
		CinemaID:   cinemaID,
		Date:       c.Date,
		Time:       c.Time,
	}
	if c.BookingLink != "" {
		link := c.BookingLink
		showing.BookingLink = &link
	}

	stored, created, err := s.showingRepo.CreateIfAbsent(ctx, showing)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store showing: %w", err)
	}

	if !created && c.BookingLink != "" && (stored.FilmID != filmID || stored.CinemaID != cinemaID) {
		s.logger.WithFields(logrus.Fields{
			"booking_link":     c.BookingLink,
			"stored_film_id":   stored.FilmID,
			"stored_cinema_id": stored.CinemaID,
			"film_id":          filmID,
			"cinema_id":        cinemaID,
		}).Warn("Booking link already belongs to another showing, keeping existing row")
	}
	return stored, created, nil
}

func (s *reconcilerService) cinemaID(ctx context.Context, c models.ShowingCandidate) (uint, error) {
	key := fmt.Sprintf("cinema:%s|%s|%d", c.Chain, c.City, c.SiteIndex)
	if id, ok := s.ids.Get(key); ok {
		return id.(uint), nil
	}

	cinema, err := s.cinemaRepo.FindOrCreate(ctx, &models.Cinema{
		Chain:     c.Chain,
		City:      c.City,
		SiteIndex: c.SiteIndex,
		Name:      c.CinemaName,
		SourceURL: c.SourceURL,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve cinema: %w", err)
	}
	s.ids.SetDefault(key, cinema.ID)
	return cinema.ID, nil
}

func (s *reconcilerService) filmID(ctx context.Context, c models.ShowingCandidate) (uint, error) {
	key := "film:" + c.Title
	if id, ok := s.ids.Get(key); ok {
		return id.(uint), nil
	}

	film, err := s.filmRepo.FindOrCreate(ctx, &models.Film{
		Title:       c.Title,
		Category:    c.Category,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		DetailURL:   c.DetailURL,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve film: %w", err)
	}
	s.ids.SetDefault(key, film.ID)
	return film.ID, nil
}

func (s *reconcilerService) PruneStale(ctx context.Context, today time.Time) (int64, error) {
	cutoff := today.Format(models.DateLayout)
	deleted, err := s.showingRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune showings before %s: %w", cutoff, err)
	}
	s.logger.WithFields(logrus.Fields{
		"before":  cutoff,
		"deleted": deleted,
	}).Info("Pruned past showings")
	return deleted, nil
}
