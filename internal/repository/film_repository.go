package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"showtime-scraper/internal/database"
	"showtime-scraper/internal/models"

	"gorm.io/gorm/clause"
)

type FilmRepository interface {
	FindOrCreate(ctx context.Context, film *models.Film) (*models.Film, error)
	FindAll(ctx context.Context, page, limit int, search string) ([]models.Film, int64, error)
}

type filmRepository struct {
	db      *database.Database
	timeout time.Duration
}

func NewFilmRepository(db *database.Database) FilmRepository {
	return &filmRepository{
		db:      db,
		timeout: db.GetQueryTimeout(),
	}
}

func (r *filmRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// FindOrCreate inserts the film with its optional fields unless the title is
// already stored. An existing row is returned untouched.
func (r *filmRepository) FindOrCreate(ctx context.Context, film *models.Film) (*models.Film, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	candidate := *film
	candidate.ID = 0
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("insert film: %w", err)
	}

	var stored models.Film
	if err := r.db.WithContext(ctx).Where("title = ?", film.Title).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("load film: %w", err)
	}
	return &stored, nil
}

func (r *filmRepository) FindAll(ctx context.Context, page, limit int, search string) ([]models.Film, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var films []models.Film
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Film{})
	if search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("title ASC").Offset(offset).Limit(limit).Find(&films).Error; err != nil {
		return nil, 0, err
	}
	return films, total, nil
}
