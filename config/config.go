package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"clubscan/models"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Portal credentials. Sourcing beyond the environment is out of scope.
	Username string
	Password string

	LoginURL   string
	BookingURL string

	// Search criteria.
	DestinationFilter string
	UnitSizes         []string
	Guests            int
	CheckIn           string
	CheckOut          string
	MinNights         int

	// Execution mode.
	Headless           bool
	InteractionDelayMs int
	StepTimeoutSec     int
	MaxRetries         int
	MaxConcurrency     int

	// Artifacts.
	CSVOutputPath  string
	XLSXOutputPath string
	DiagnosticsDir string

	// Optional snapshot history database. Disabled when the host is empty.
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Username: getEnv("PORTAL_USERNAME", ""),
		Password: getEnv("PORTAL_PASSWORD", ""),

		LoginURL:   getEnv("PORTAL_LOGIN_URL", "https://holidayinnclub.com/login"),
		BookingURL: getEnv("PORTAL_BOOKING_URL", ""),

		DestinationFilter: getEnv("DESTINATION_FILTER", ""),
		UnitSizes:         splitList(getEnv("UNIT_SIZES", "Studio,1 Bedroom")),
		Guests:            getEnvInt("GUESTS", 2),
		CheckIn:           getEnv("CHECK_IN", ""),
		CheckOut:          getEnv("CHECK_OUT", ""),
		MinNights:         getEnvInt("MIN_NIGHTS", 1),

		Headless:           getEnvBool("HEADLESS", true),
		InteractionDelayMs: getEnvInt("INTERACTION_DELAY_MS", 200),
		StepTimeoutSec:     getEnvInt("STEP_TIMEOUT_SEC", 30),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		MaxConcurrency:     getEnvInt("MAX_CONCURRENCY", 2),

		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", "./output/availability.csv"),
		XLSXOutputPath: getEnv("XLSX_OUTPUT_PATH", "./output/availability.xlsx"),
		DiagnosticsDir: getEnv("DIAGNOSTICS_DIR", "./output/diagnostics"),

		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "clubscan"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "clubscan"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// Criteria builds and validates the SearchCriteria for this configuration.
func (c *Config) Criteria() (*models.SearchCriteria, error) {
	checkIn, err := parseDate(c.CheckIn)
	if err != nil {
		return nil, fmt.Errorf("config: CHECK_IN: %w", err)
	}
	checkOut, err := parseDate(c.CheckOut)
	if err != nil {
		return nil, fmt.Errorf("config: CHECK_OUT: %w", err)
	}

	criteria := &models.SearchCriteria{
		Destination: strings.TrimSpace(c.DestinationFilter),
		UnitSizes:   c.UnitSizes,
		Guests:      c.Guests,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		MinNights:   c.MinNights,
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	return criteria, nil
}

// Validate rejects configurations that could never produce a run.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("config: PORTAL_USERNAME and PORTAL_PASSWORD are required")
	}
	if len(c.Destinations()) == 0 {
		return fmt.Errorf("config: at least one output path is required")
	}
	if c.InteractionDelayMs < 0 {
		return fmt.Errorf("config: INTERACTION_DELAY_MS must not be negative")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("config: MAX_RETRIES must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("config: MAX_CONCURRENCY must be positive")
	}
	if _, err := c.Criteria(); err != nil {
		return err
	}
	return nil
}

// Destinations lists the configured export artifacts. Empty paths are skipped.
func (c *Config) Destinations() []models.ExportDestination {
	var dests []models.ExportDestination
	if c.CSVOutputPath != "" {
		dests = append(dests, models.ExportDestination{Format: "csv", Path: c.CSVOutputPath})
	}
	if c.XLSXOutputPath != "" {
		dests = append(dests, models.ExportDestination{Format: "xlsx", Path: c.XLSXOutputPath})
	}
	return dests
}

// SnapshotDBEnabled reports whether the optional history database is configured.
func (c *Config) SnapshotDBEnabled() bool {
	return c.PostgresHost != ""
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// StepTimeout is the per-step interaction deadline, reset on each retry.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.StepTimeoutSec) * time.Second
}

func parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("empty date, want YYYY-MM-DD")
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", raw)
	}
	return t, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
