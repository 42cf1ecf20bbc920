package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Scheduler SchedulerConfig
	Queue     QueueConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // postgres, mysql or sqlite
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

type BrowserConfig struct {
	ExecPath   string
	UserAgent  string
	Headless   bool
	NavTimeout time.Duration
}

type ScraperConfig struct {
	MatrixFile      string
	CinemaSeedFile  string
	WaitTimeout     time.Duration
	LookaheadDays   int
	Concurrency     int
	RequestsPerMin  int
	SweepDeadline   time.Duration
	MultikinoBase   string
	HeliosBase      string
	ArchiveSnapshot bool
	Timezone        string
}

type SchedulerConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	PruneInterval time.Duration
	Workers       int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

type QueueConfig struct {
	AMQPURL   string
	QueueName string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvOrDefault("SERVER_PORT", "8010"),
			ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnvOrDefault("DB_DRIVER", "postgres")),
			Host:            getEnvOrDefault("DB_HOST", "localhost"),
			Port:            getEnvOrDefault("DB_PORT", "5432"),
			User:            getEnvOrDefault("DB_USER", "postgres"),
			Password:        getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:          getEnvOrDefault("DB_NAME", "showtimes"),
			SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
			Path:            getEnvOrDefault("DB_PATH", "showtimes.db"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			QueryTimeout:    getDurationOrDefault("DB_QUERY_TIMEOUT", 10*time.Second),
		},
		Browser: BrowserConfig{
			ExecPath:   os.Getenv("CHROME_PATH"),
			UserAgent:  os.Getenv("CHROME_USER_AGENT"),
			Headless:   getBoolOrDefault("CHROME_HEADLESS", true),
			NavTimeout: getDurationOrDefault("SCRAPER_NAV_TIMEOUT", 60*time.Second),
		},
		Scraper: ScraperConfig{
			MatrixFile:      getEnvOrDefault("SCRAPER_MATRIX_FILE", "cities.json"),
			CinemaSeedFile:  getEnvOrDefault("SCRAPER_CINEMA_FILE", "cinemas.json"),
			WaitTimeout:     getDurationOrDefault("SCRAPER_WAIT_TIMEOUT", 30*time.Second),
			LookaheadDays:   getIntOrDefault("SCRAPER_LOOKAHEAD_DAYS", 4),
			Concurrency:     getIntOrDefault("SWEEP_CONCURRENCY", 1),
			RequestsPerMin:  getIntOrDefault("SCRAPER_REQUESTS_PER_MIN", 30),
			SweepDeadline:   getDurationOrDefault("SWEEP_DEADLINE", 2*time.Hour),
			MultikinoBase:   getEnvOrDefault("MULTIKINO_BASE_URL", "https://multikino.pl"),
			HeliosBase:      getEnvOrDefault("HELIOS_BASE_URL", "https://www.helios.pl"),
			ArchiveSnapshot: getBoolOrDefault("SCRAPER_ARCHIVE_SNAPSHOTS", false),
			Timezone:        getEnvOrDefault("SCRAPER_TIMEZONE", "Europe/Warsaw"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolOrDefault("SCHEDULER_ENABLED", true),
			SweepInterval: getDurationOrDefault("SCHEDULER_SWEEP_INTERVAL", 24*time.Hour),
			PruneInterval: getDurationOrDefault("SCHEDULER_PRUNE_INTERVAL", 6*time.Hour),
			Workers:       getIntOrDefault("SCHEDULER_WORKERS", 2),
			MaxRetries:    getIntOrDefault("SCHEDULER_MAX_RETRIES", 2),
			RetryDelay:    getDurationOrDefault("SCHEDULER_RETRY_DELAY", time.Minute),
			MaxRetryDelay: getDurationOrDefault("SCHEDULER_MAX_RETRY_DELAY", 15*time.Minute),
		},
		Queue: QueueConfig{
			AMQPURL:   firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
			QueueName: getEnvOrDefault("RABBITMQ_QUEUE", "scraper.tasks"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			LockTTL:  getDurationOrDefault("SWEEP_LOCK_TTL", 3*time.Hour),
		},
		MinIO: MinIOConfig{
			Endpoint:        os.Getenv("AWS_ENDPOINT"),
			AccessKeyID:     getEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnvOrDefault("AWS_BUCKET", "showtime-snapshots"),
			Region:          getEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1"),
			UseSSL:          getBoolOrDefault("AWS_USE_SSL", true),
		},
	}
}

// GetDSN returns the connection string for the configured driver.
func (c *Config) GetDSN() string {
	d := c.Database
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	case "sqlite":
		return d.Path
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
			d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER %q is not supported", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Scraper.LookaheadDays < 1 {
		return fmt.Errorf("SCRAPER_LOOKAHEAD_DAYS must be at least 1")
	}
	if c.Scraper.WaitTimeout <= 0 {
		return fmt.Errorf("SCRAPER_WAIT_TIMEOUT must be positive")
	}
	if c.Browser.NavTimeout <= 0 {
		return fmt.Errorf("SCRAPER_NAV_TIMEOUT must be positive")
	}
	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1")
	}
	if _, err := time.LoadLocation(c.Scraper.Timezone); err != nil {
		return fmt.Errorf("SCRAPER_TIMEZONE: %w", err)
	}
	if c.Scraper.ArchiveSnapshot && c.MinIO.Endpoint == "" {
		return fmt.Errorf("AWS_ENDPOINT is required when SCRAPER_ARCHIVE_SNAPSHOTS is enabled")
	}
	return nil
}

// Location resolves the timezone used to decide what "today" is for sweeps
// and pruning. Falls back to UTC when the zone database is unavailable.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scraper.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
