package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"showtime-scraper/internal/config"
	"showtime-scraper/internal/models"
	"showtime-scraper/internal/repository"
	"showtime-scraper/internal/scraper"

	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CatalogService answers read queries over stored listings and imports the
// cinema seed file.
type CatalogService interface {
	GetShowings(ctx context.Context, filter models.ShowingFilter) ([]models.Showing, int64, error)
	GetCinemas(ctx context.Context, city string) ([]models.Cinema, error)
	GetFilms(ctx context.Context, page, limit int, search string) ([]models.Film, int64, error)
	ImportCinemas(ctx context.Context, seeds []config.CinemaSeed) (int, error)
}

type catalogService struct {
	cinemaRepo  repository.CinemaRepository
	filmRepo    repository.FilmRepository
	showingRepo repository.ShowingRepository
	logger      *logrus.Logger
}

func NewCatalogService(cinemaRepo repository.CinemaRepository, filmRepo repository.FilmRepository, showingRepo repository.ShowingRepository, logger *logrus.Logger) CatalogService {
	return &catalogService{
		cinemaRepo:  cinemaRepo,
		filmRepo:    filmRepo,
		showingRepo: showingRepo,
		logger:      logger,
	}
}

// NormalizePage clamps pagination parameters to sane bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func (s *catalogService) GetShowings(ctx context.Context, filter models.ShowingFilter) ([]models.Showing, int64, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	filter.City = strings.TrimSpace(filter.City)
	filter.Chain = strings.ToLower(strings.TrimSpace(filter.Chain))
	if filter.Date != "" {
		if _, err := time.Parse(models.DateLayout, filter.Date); err != nil {
			return nil, 0, fmt.Errorf("date must be YYYY-MM-DD: %w", ErrInvalidFilter)
		}
	}
	return s.showingRepo.FindAll(ctx, filter)
}

func (s *catalogService) GetCinemas(ctx context.Context, city string) ([]models.Cinema, error) {
	return s.cinemaRepo.FindAll(ctx, strings.TrimSpace(city))
}

func (s *catalogService) GetFilms(ctx context.Context, page, limit int, search string) ([]models.Film, int64, error) {
	page, limit = NormalizePage(page, limit)
	return s.filmRepo.FindAll(ctx, page, limit, strings.TrimSpace(search))
}

// ImportCinemas creates the seeded venues or refreshes their name and address.
func (s *catalogService) ImportCinemas(ctx context.Context, seeds []config.CinemaSeed) (int, error) {
	imported := 0
	for _, seed := range seeds {
		loc := scraper.Location{City: seed.City, SiteIndex: seed.Number}
		cinema := &models.Cinema{
			Chain:     seed.Name,
			City:      seed.City,
			SiteIndex: seed.Number,
			Name:      scraper.CinemaName(seed.Name, loc),
			Address:   seed.Address,
		}
		if err := s.cinemaRepo.UpsertSeed(ctx, cinema); err != nil {
			return imported, fmt.Errorf("failed to import cinema %s/%s: %w", seed.Name, seed.City, err)
		}
		imported++
	}
	s.logger.WithField("cinemas", imported).Info("Cinema seed imported")
	return imported, nil
}
