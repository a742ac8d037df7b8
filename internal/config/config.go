package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	ProviderDrive = "drive"
	ProviderGCS   = "gcs"
	ProviderLocal = "local"
)

type Config struct {
	DBPath    string `validate:"required"`
	OutputDir string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	FileStoreProvider        string `validate:"oneof=drive gcs local"`
	DriveFolderID            string
	DriveProcessedFolderName string `validate:"required"`
	GoogleCredentialsFile    string
	GCSBucket                string
	GCSInboxPrefix           string
	GCSProcessedPrefix       string
	LocalInboxDir            string

	ZohoAPIBaseURL        string `validate:"required,url"`
	ZohoTokenURL          string `validate:"required,url"`
	ZohoClientID          string
	ZohoClientSecret      string
	ZohoRefreshToken      string
	ZohoOrganizationID    string
	ZohoDefaultCustomerID string
	ZohoRateLimitRPS      int `validate:"gte=1,lte=100"`
	ZohoTimeoutMs         int `validate:"gte=1000"`
	ZohoMaxRetries        int `validate:"gte=1,lte=10"`

	CacheStaleAfter        time.Duration `validate:"gt=0"`
	CreateMissingItems     bool
	CreateMissingCustomers bool

	OCRPdftoppm  string
	OCRTesseract string
	OCRLang      string
	OCRDPI       int `validate:"gte=72,lte=600"`
	OCRMaxPages  int `validate:"gte=1"`

	WatchSchedule     string `validate:"required"`
	MetricsAddr       string
	ExtractFailLoudly bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "estimatesync.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		FileStoreProvider:        strings.ToLower(getEnv("FILESTORE_PROVIDER", ProviderDrive)),
		DriveFolderID:            getEnv("DRIVE_FOLDER_ID", ""),
		DriveProcessedFolderName: getEnv("DRIVE_PROCESSED_FOLDER_NAME", "processed"),
		GoogleCredentialsFile:    getEnv("GOOGLE_CREDENTIALS_FILE", filepath.Join(cwd, "credentials.json")),
		GCSBucket:                getEnv("GCS_BUCKET", ""),
		GCSInboxPrefix:           getEnv("GCS_INBOX_PREFIX", "estimates"),
		GCSProcessedPrefix:       getEnv("GCS_PROCESSED_PREFIX", ""),
		LocalInboxDir:            getEnv("LOCAL_INBOX_DIR", filepath.Join(cwd, "inbox")),

		ZohoAPIBaseURL:        getEnv("ZOHO_API_BASE_URL", "https://www.zohoapis.com/books/v3"),
		ZohoTokenURL:          getEnv("ZOHO_TOKEN_URL", "https://accounts.zoho.com/oauth/v2/token"),
		ZohoClientID:          getEnv("ZOHO_CLIENT_ID", ""),
		ZohoClientSecret:      getEnv("ZOHO_CLIENT_SECRET", ""),
		ZohoRefreshToken:      getEnv("ZOHO_REFRESH_TOKEN", ""),
		ZohoOrganizationID:    getEnv("ZOHO_ORGANIZATION_ID", ""),
		ZohoDefaultCustomerID: getEnv("ZOHO_DEFAULT_CUSTOMER_ID", ""),
		ZohoRateLimitRPS:      getEnvInt("ZOHO_RATE_LIMIT_RPS", 2),
		ZohoTimeoutMs:         getEnvInt("ZOHO_TIMEOUT_MS", 30000),
		ZohoMaxRetries:        getEnvInt("ZOHO_MAX_RETRIES", 3),

		CacheStaleAfter:        getEnvDuration("CACHE_STALE_AFTER", time.Hour),
		CreateMissingItems:     getEnvBool("CREATE_MISSING_ITEMS", false),
		CreateMissingCustomers: getEnvBool("CREATE_MISSING_CUSTOMERS", false),

		OCRPdftoppm:  getEnv("OCR_PDFTOPPM", "pdftoppm"),
		OCRTesseract: getEnv("OCR_TESSERACT", "tesseract"),
		OCRLang:      getEnv("OCR_LANG", "eng"),
		OCRDPI:       getEnvInt("OCR_DPI", 300),
		OCRMaxPages:  getEnvInt("OCR_MAX_PAGES", 10),

		WatchSchedule:     getEnv("WATCH_SCHEDULE", "@every 15m"),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
		ExtractFailLoudly: getEnvBool("EXTRACT_FAIL_LOUDLY", false),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// RequireZoho checks the credentials needed to refresh an access token.
func (c Config) RequireZoho() error {
	for _, kv := range [][2]string{
		{"ZOHO_CLIENT_ID", c.ZohoClientID},
		{"ZOHO_CLIENT_SECRET", c.ZohoClientSecret},
		{"ZOHO_REFRESH_TOKEN", c.ZohoRefreshToken},
		{"ZOHO_ORGANIZATION_ID", c.ZohoOrganizationID},
	} {
		if err := c.Require(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
