package common

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/expense-tracker/constants"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Storage    StorageConfig
	OCR        OCRConfig
	LLM        LLMConfig
	Extract    ExtractConfig
	Queue      QueueConfig
	Ingest     IngestConfig
	Categories CategoriesConfig
	Log        LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" | "postgres"
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// StorageConfig holds where accepted receipts and OCR artifacts live.
type StorageConfig struct {
	Root           string
	ArtifactDir    string
	MaxUploadBytes int64
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine            string // "tesseract-cli" | "gosseract"
	Tesseract         string
	Pdftotext         string
	Pdftoppm          string
	Language          string
	TessdataDir       string
	DPI               int
	MaxPages          int
	MinTextLayerChars int
	Timeout           time.Duration
}

// LLMConfig holds the optional extraction collaborator configuration
type LLMConfig struct {
	Enabled        bool
	BaseURL        string
	Model          string
	HealthTimeout  time.Duration
	ExtractTimeout time.Duration
	MaxPromptChars int
}

// ExtractConfig tunes the heuristic vendor matcher. Zero means the package default.
type ExtractConfig struct {
	VendorLineThreshold float64
	VendorWordThreshold float64
}

// QueueConfig selects and sizes the job queue.
type QueueConfig struct {
	Backend        string // "memory" | "redis"
	RedisURL       string
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// IngestConfig holds watch-folder settings.
type IngestConfig struct {
	WatchDirs   []string
	InitialScan bool
	Debounce    time.Duration
}

// CategoriesConfig points at an optional vendor/category mapping override.
type CategoriesConfig struct {
	MappingFile string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig() *Config {
	// .env is optional; variables already set in the environment are not overridden
	_ = godotenv.Load()

	root := getEnv("STORAGE_DIR", "./data")
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", filepath.Join(root, "expenses.db")),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			Root:           root,
			ArtifactDir:    getEnv("ARTIFACT_DIR", filepath.Join(root, "artifacts")),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", constants.MaxUploadBytes),
		},
		OCR: OCRConfig{
			Engine:            getEnv("OCR_ENGINE", "tesseract-cli"),
			Tesseract:         getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:         getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:          getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Language:          getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:       getEnv("TESSDATA_PREFIX", ""),
			DPI:               getEnvAsInt("OCR_DPI", 200),
			MaxPages:          getEnvAsInt("OCR_MAX_PAGES", 5),
			MinTextLayerChars: getEnvAsInt("PDF_MIN_TEXT_CHARS", 50),
			Timeout:           getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			Enabled:        getEnvAsBool("LLM_ENABLED", false),
			BaseURL:        getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Model:          getEnv("LLM_MODEL", "llama3.2"),
			HealthTimeout:  getEnvAsDuration("LLM_HEALTH_TIMEOUT", 5*time.Second),
			ExtractTimeout: getEnvAsDuration("LLM_EXTRACT_TIMEOUT", 15*time.Second),
			MaxPromptChars: getEnvAsInt("LLM_MAX_PROMPT_CHARS", 1500),
		},
		Extract: ExtractConfig{
			VendorLineThreshold: getEnvAsFloat("VENDOR_LINE_THRESHOLD", 0),
			VendorWordThreshold: getEnvAsFloat("VENDOR_WORD_THRESHOLD", 0),
		},
		Queue: QueueConfig{
			Backend:        strings.ToLower(getEnv("QUEUE_BACKEND", "memory")),
			RedisURL:       getEnv("REDIS_URL", ""),
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("QUEUE_PROCESS_TIMEOUT", 3*time.Minute),
		},
		Ingest: IngestConfig{
			WatchDirs:   getEnvAsList("WATCH_DIRS"),
			InitialScan: getEnvAsBool("WATCH_INITIAL_SCAN", false),
			Debounce:    getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Categories: CategoriesConfig{
			MappingFile: getEnv("CATEGORY_MAP_FILE", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma or path-list separated value, dropping blanks.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "SQLITE_PATH is required for the sqlite driver", ErrInvalidInput)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.Root == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_DIR is required", ErrInvalidInput)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be positive", ErrInvalidInput)
	}
	if c.LLM.Enabled && c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "LLM_BASE_URL is required when LLM_ENABLED", ErrInvalidInput)
	}
	for _, t := range []float64{c.Extract.VendorLineThreshold, c.Extract.VendorWordThreshold} {
		if t < 0 || t > 1 {
			return NewAppError("CONFIG_ERROR", "vendor thresholds must be within [0,1]", ErrInvalidInput)
		}
	}
	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisURL == "" {
			return NewAppError("CONFIG_ERROR", "REDIS_URL is required for the redis queue", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "QUEUE_BACKEND must be memory or redis", ErrInvalidInput)
	}
	return nil
}
