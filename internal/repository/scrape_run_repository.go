package repository

import (
	"context"
	"errors"
	"time"

	"showtime-scraper/internal/database"
	"showtime-scraper/internal/models"

	"gorm.io/gorm"
)

type ScrapeRunRepository interface {
	Create(ctx context.Context, run *models.ScrapeRun) error
	Update(ctx context.Context, run *models.ScrapeRun) error
	GetLast(ctx context.Context, chain string) (*models.ScrapeRun, error)
}

type scrapeRunRepository struct {
	db      *database.Database
	timeout time.Duration
}

func NewScrapeRunRepository(db *database.Database) ScrapeRunRepository {
	return &scrapeRunRepository{
		db:      db,
		timeout: db.GetQueryTimeout(),
	}
}

func (r *scrapeRunRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *scrapeRunRepository) Create(ctx context.Context, run *models.ScrapeRun) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Create(run).Error
}

func (r *scrapeRunRepository) Update(ctx context.Context, run *models.ScrapeRun) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.db.WithContext(ctx).Save(run).Error
}

// GetLast returns the most recent run for chain, or for any chain when chain
// is empty. It returns nil, nil when there is none.
func (r *scrapeRunRepository) GetLast(ctx context.Context, chain string) (*models.ScrapeRun, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var run models.ScrapeRun
	query := r.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if chain != "" {
		query = query.Where("chain = ?", chain)
	}
	if err := query.First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
