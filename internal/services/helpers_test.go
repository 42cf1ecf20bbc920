package services

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"showtime-scraper/internal/config"
	"showtime-scraper/internal/database"
	"showtime-scraper/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := database.Open(sqlite.Open(dsn), config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newFileTestDB opens a SQLite file with several pooled connections so
// concurrent callers really overlap.
func newFileTestDB(t *testing.T, conns int) *database.Database {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "showtimes.db"))

	db, err := database.Open(sqlite.Open(dsn), config.DatabaseConfig{
		Driver:       "sqlite",
		MaxOpenConns: conns,
		MaxIdleConns: conns,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testRepos struct {
	cinemas  repository.CinemaRepository
	films    repository.FilmRepository
	showings repository.ShowingRepository
	runs     repository.ScrapeRunRepository
}

func newTestRepos(t *testing.T) (*database.Database, testRepos) {
	db := newTestDB(t)
	return db, reposFor(db)
}

func reposFor(db *database.Database) testRepos {
	return testRepos{
		cinemas:  repository.NewCinemaRepository(db),
		films:    repository.NewFilmRepository(db),
		showings: repository.NewShowingRepository(db),
		runs:     repository.NewScrapeRunRepository(db),
	}
}

func countRows(t *testing.T, db *database.Database, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}
