package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sheetflow/internal/errors"
)

// Sheet source kinds
const (
	SourceGoogle = "google"
	SourceXLSX   = "xlsx"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Sheets   SheetsConfig
	Import   ImportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// SheetsConfig selects and configures the spreadsheet source
type SheetsConfig struct {
	Source       string // google or xlsx
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	SheetsAPI    string
	DriveAPI     string
	Timeout      time.Duration
	XLSXDir      string
}

// ImportConfig holds the pipeline defaults
type ImportConfig struct {
	MaxSamples      int
	EnumThreshold   int
	DayFirst        bool
	StringAsBoolean bool
	IDFields        []string
	PreserveFields  []string
	DropMissing     bool
	DefaultUserID   string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:   *loadServerConfig(),
		Sheets:   *loadSheetsConfig(),
		Import:   *loadImportConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// RequireDatabase reports a config error when no database is configured
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	return nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadSheetsConfig() *SheetsConfig {
	xlsxDir := os.Getenv("XLSX_DIR")
	source := SourceGoogle
	if xlsxDir != "" {
		source = SourceXLSX
	}

	return &SheetsConfig{
		Source:       getEnvOrDefault("SHEET_SOURCE", source),
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RefreshToken: os.Getenv("GOOGLE_REFRESH_TOKEN"),
		AccessToken:  os.Getenv("GOOGLE_ACCESS_TOKEN"),
		SheetsAPI:    getEnvOrDefault("SHEETS_API_BASE", "https://sheets.googleapis.com/v4"),
		DriveAPI:     getEnvOrDefault("DRIVE_API_BASE", "https://www.googleapis.com/drive/v3"),
		Timeout:      getEnvDurationOrDefault("SHEETS_TIMEOUT", 30*time.Second),
		XLSXDir:      xlsxDir,
	}
}

func loadImportConfig() *ImportConfig {
	return &ImportConfig{
		MaxSamples:      getEnvIntOrDefault("IMPORT_MAX_SAMPLES", 1000),
		EnumThreshold:   getEnvIntOrDefault("IMPORT_ENUM_THRESHOLD", 25),
		DayFirst:        getEnvBoolOrDefault("IMPORT_DAY_FIRST", true),
		StringAsBoolean: getEnvBoolOrDefault("IMPORT_STRING_AS_BOOLEAN", true),
		IDFields:        getEnvListOrDefault("IMPORT_ID_FIELDS", []string{"orderNumber", "productCode"}),
		PreserveFields:  getEnvListOrDefault("IMPORT_PRESERVE_FIELDS", nil),
		DropMissing:     getEnvBoolOrDefault("IMPORT_DROP_MISSING", false),
		DefaultUserID:   getEnvOrDefault("DEFAULT_USER_ID", "00000000-0000-0000-0000-000000000001"),
	}
}

func validateConfig(config *Config) error {
	switch config.Sheets.Source {
	case SourceGoogle:
	case SourceXLSX:
		if config.Sheets.XLSXDir == "" {
			return errors.ConfigInvalid("XLSX_DIR is required for the xlsx source")
		}
	default:
		return errors.ConfigInvalid("SHEET_SOURCE must be google or xlsx")
	}
	if config.Import.MaxSamples <= 0 {
		return errors.ConfigInvalid("IMPORT_MAX_SAMPLES must be positive")
	}
	if len(config.Import.IDFields) == 0 {
		return errors.ConfigInvalid("IMPORT_ID_FIELDS must name at least one field")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma list, dropping blank entries
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
