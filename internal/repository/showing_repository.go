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

type ShowingRepository interface {
	CreateIfAbsent(ctx context.Context, showing *models.Showing) (*models.Showing, bool, error)
	FindByNaturalKey(ctx context.Context, key string) (*models.Showing, error)
	DeleteBefore(ctx context.Context, date string) (int64, error)
	FindAll(ctx context.Context, filter models.ShowingFilter) ([]models.Showing, int64, error)
}

type showingRepository struct {
	db      *database.Database
	timeout time.Duration
}

func NewShowingRepository(db *database.Database) ShowingRepository {
	return &showingRepository{
		db:      db,
		timeout: db.GetQueryTimeout(),
	}
}

func (r *showingRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// CreateIfAbsent writes the showing unless its natural key is already taken.
// It reports whether a new row was written and returns the stored row either way.
func (r *showingRepository) CreateIfAbsent(ctx context.Context, showing *models.Showing) (*models.Showing, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if showing.NaturalKey == "" {
		return nil, false, errors.New("showing natural key is empty")
	}

	result := r.db.WithContext(ctx).
		Omit("Film", "Cinema").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(showing)
	if result.Error != nil {
		return nil, false, fmt.Errorf("insert showing: %w", result.Error)
	}
	if result.RowsAffected == 1 && showing.ID != 0 {
		return showing, true, nil
	}

	var stored models.Showing
	if err := r.db.WithContext(ctx).Where("natural_key = ?", showing.NaturalKey).First(&stored).Error; err != nil {
		return nil, false, fmt.Errorf("load showing: %w", err)
	}
	return &stored, false, nil
}

func (r *showingRepository) FindByNaturalKey(ctx context.Context, key string) (*models.Showing, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var showing models.Showing
	err := r.db.WithContext(ctx).Where("natural_key = ?", key).First(&showing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &showing, nil
}

// DeleteBefore removes every showing dated strictly before date (YYYY-MM-DD).
func (r *showingRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result := r.db.WithContext(ctx).Where("date < ?", date).Delete(&models.Showing{})
	return result.RowsAffected, result.Error
}

func (r *showingRepository) FindAll(ctx context.Context, filter models.ShowingFilter) ([]models.Showing, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var showings []models.Showing
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Showing{}).
		Joins("JOIN cinemas ON cinemas.id = showings.cinema_id")

	if filter.City != "" {
		query = query.Where("LOWER(cinemas.city) = LOWER(?)", filter.City)
	}
	if filter.Chain != "" {
		query = query.Where("cinemas.chain = ?", filter.Chain)
	}
	if filter.Date != "" {
		query = query.Where("showings.date = ?", filter.Date)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := query.Preload("Film").Preload("Cinema").
		Order("showings.date ASC, showings.time ASC, showings.id ASC").
		Offset(offset).Limit(filter.Limit).
		Find(&showings).Error
	if err != nil {
		return nil, 0, err
	}
	return showings, total, nil
}
