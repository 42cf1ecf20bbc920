package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"showtime-scraper/internal/database"
	"showtime-scraper/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CinemaRepository interface {
	FindOrCreate(ctx context.Context, cinema *models.Cinema) (*models.Cinema, error)
	FindByKey(ctx context.Context, chain, city string, siteIndex int) (*models.Cinema, error)
	UpsertSeed(ctx context.Context, cinema *models.Cinema) error
	FindAll(ctx context.Context, city string) ([]models.Cinema, error)
}

type cinemaRepository struct {
	db      *database.Database
	timeout time.Duration
}

func NewCinemaRepository(db *database.Database) CinemaRepository {
	return &cinemaRepository{
		db:      db,
		timeout: db.GetQueryTimeout(),
	}
}

func (r *cinemaRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// FindOrCreate inserts the cinema unless a row with the same natural key
// exists, then returns the stored row. The insert is conflict-tolerant, so
// concurrent callers always converge on a single row.
func (r *cinemaRepository) FindOrCreate(ctx context.Context, cinema *models.Cinema) (*models.Cinema, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	candidate := *cinema
	candidate.ID = 0
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("insert cinema: %w", err)
	}

	var stored models.Cinema
	err = r.db.WithContext(ctx).
		Where("chain = ? AND city = ? AND site_index = ?", cinema.Chain, cinema.City, cinema.SiteIndex).
		First(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("load cinema: %w", err)
	}
	return &stored, nil
}

func (r *cinemaRepository) FindByKey(ctx context.Context, chain, city string, siteIndex int) (*models.Cinema, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var cinema models.Cinema
	err := r.db.WithContext(ctx).
		Where("chain = ? AND city = ? AND site_index = ?", chain, city, siteIndex).
		First(&cinema).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cinema, nil
}

// UpsertSeed creates the cinema or refreshes its name and address. Used by
// the seed import only; scraping never rewrites cinema attributes.
func (r *cinemaRepository) UpsertSeed(ctx context.Context, cinema *models.Cinema) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain"}, {Name: "city"}, {Name: "site_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "updated_at"}),
	}).Create(cinema).Error
}

func (r *cinemaRepository) FindAll(ctx context.Context, city string) ([]models.Cinema, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var cinemas []models.Cinema
	query := r.db.WithContext(ctx).Model(&models.Cinema{})
	if city != "" {
		query = query.Where("LOWER(city) = LOWER(?)", city)
	}
	err := query.Order("chain, city, site_index").Find(&cinemas).Error
	return cinemas, err
}
