package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/stemsi/help-queue/internal/model"
)

// Store drivers.
const (
	StoreDriverSheets = "sheets"
	StoreDriverMemory = "memory"
)

// DefaultSheetName is the tab used when SHEET_NAME is not set.
const DefaultSheetName = "Sheet1"

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	StoreDriver string
	// CredentialsJSON is the raw Google service-account payload.
	CredentialsJSON []byte
	SpreadsheetID   string
	SheetName       string

	// Roster lists the student names allowed to log in and submit.
	Roster []string

	RedisURL      string
	SessionSecret string
	SessionTTL    time.Duration
	CSRFKey       []byte

	SubmitRatePerMinute int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// rosterFile is the YAML layout accepted by ROSTER_FILE.
type rosterFile struct {
	Students []string `yaml:"students"`
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing. Credential and
// roster files are read here, so a bad path surfaces as a configuration error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "pretty"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSheets)),
		SpreadsheetID:       strings.TrimSpace(os.Getenv("SPREADSHEET_ID")),
		SheetName:           getEnv("SHEET_NAME", DefaultSheetName),
		Roster:              splitList(os.Getenv("STUDENT_ROSTER")),
		RedisURL:            os.Getenv("REDIS_URL"),
		SessionSecret:       getEnv("SESSION_SECRET", "change-this-to-a-secure-random-string"),
		SessionTTL:          time.Duration(getEnvInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		CSRFKey:             []byte(os.Getenv("CSRF_KEY")),
		SubmitRatePerMinute: getEnvInt("SUBMIT_RATE_PER_MINUTE", 6),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	if raw := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"); raw != "" {
		cfg.CredentialsJSON = []byte(raw)
	} else if path := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read service account file: %v", model.ErrConfiguration, err)
		}
		cfg.CredentialsJSON = data
	}

	if path := os.Getenv("ROSTER_FILE"); path != "" {
		roster, err := LoadRoster(path)
		if err != nil {
			return nil, err
		}
		cfg.Roster = roster
	}

	return cfg, nil
}

// Validate reports missing settings required by the selected store driver.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverSheets:
		if len(c.CredentialsJSON) == 0 {
			return fmt.Errorf("%w: GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE is required", model.ErrConfiguration)
		}
		if c.SpreadsheetID == "" {
			return fmt.Errorf("%w: SPREADSHEET_ID is required", model.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", model.ErrConfiguration, c.StoreDriver)
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("%w: student roster is empty (set STUDENT_ROSTER or ROSTER_FILE)", model.ErrConfiguration)
	}
	if n := len(c.CSRFKey); n != 0 && n != 32 {
		return fmt.Errorf("%w: CSRF_KEY must be 32 bytes, got %d", model.ErrConfiguration, n)
	}
	return nil
}

// LoadRoster reads a YAML roster file of the form `students: [...]`.
func LoadRoster(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read roster file: %v", model.ErrConfiguration, err)
	}
	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("%w: parse roster file: %v", model.ErrConfiguration, err)
	}
	roster := make([]string, 0, len(rf.Students))
	for _, name := range rf.Students {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			roster = append(roster, trimmed)
		}
	}
	return roster, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// splitList splits a comma-separated string into a trimmed slice.
// Returns nil if the input is empty.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
