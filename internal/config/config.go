package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"spesesync/internal/log"
)

type Config struct {
	// Remote store server
	Port               string
	SQLiteDBPath       string
	RateLimitPerMinute int

	// Durable queue and snapshot storage on the client
	QueueBackend   string
	QueueDBPath    string
	QueueBadgerDir string

	// Remote store used by the client
	RemoteBackend string
	RemoteURL     string
	RemoteTimeout time.Duration

	// Connectivity probe
	ProbeURL      string
	ProbeInterval time.Duration

	// Client behaviour
	PageSize     int
	DirectWrites bool
	CacheTTL     time.Duration
	AgentAddr    string

	// AMQP sync events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets remote backend
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

var (
	queueBackends  = []string{"memory", "sqlite", "badger"}
	remoteBackends = []string{"http", "sheets", "memory"}
	logFormats     = []string{"text", "json"}
)

func Load() *Config {
	remoteURL := strings.TrimRight(getEnv("REMOTE_URL", "http://localhost:8081"), "/")
	remoteBackend := getEnv("REMOTE_BACKEND", "http")

	// Only the http backend has a health endpoint to poll by default.
	probeURL := ""
	if remoteBackend == "http" {
		probeURL = remoteURL + "/healthz"
	}

	return &Config{
		Port:               getEnv("PORT", "8081"),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/spese-server.db"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		QueueBackend:   getEnv("QUEUE_BACKEND", "sqlite"),
		QueueDBPath:    getEnv("QUEUE_DB_PATH", "./data/spese-client.db"),
		QueueBadgerDir: getEnv("QUEUE_BADGER_DIR", "./data/badger"),

		RemoteBackend: remoteBackend,
		RemoteURL:     remoteURL,
		RemoteTimeout: getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),

		ProbeURL:      lookupEnv("PROBE_URL", probeURL),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 5*time.Second),

		PageSize:     getEnvInt("PAGE_SIZE", 5),
		DirectWrites: getEnvBool("DIRECT_WRITES", true),
		CacheTTL:     getEnvDuration("CACHE_TTL", 30*time.Second),
		AgentAddr:    getEnv("AGENT_ADDR", ":9091"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spese"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch c.QueueBackend {
	case "sqlite":
		if c.QueueDBPath == "" {
			errors = append(errors, "queue database path cannot be empty when using sqlite queue backend")
		}
	case "badger":
		if c.QueueBadgerDir == "" {
			errors = append(errors, "badger directory cannot be empty when using badger queue backend")
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid queue backend '%s': must be one of %v", c.QueueBackend, queueBackends))
	}

	switch c.RemoteBackend {
	case "http":
		if msg := checkHTTPURL("remote URL", c.RemoteURL); msg != "" {
			errors = append(errors, msg)
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets remote backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets remote backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets remote backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	case "memory":
	default:
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, remoteBackends))
	}

	if c.RemoteTimeout <= 0 || c.RemoteTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid remote timeout %v: must be between 0 and 5 minutes", c.RemoteTimeout))
	}
	if c.ProbeURL != "" {
		if msg := checkHTTPURL("probe URL", c.ProbeURL); msg != "" {
			errors = append(errors, msg)
		}
	}
	if c.ProbeInterval < 500*time.Millisecond || c.ProbeInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid probe interval %v: must be between 500ms and 1 hour", c.ProbeInterval))
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, logFormats))
	}
	if c.LogFile != "" && (c.LogMaxSizeMB < 1 || c.LogMaxBackups < 0) {
		errors = append(errors, "log rotation needs LOG_MAX_SIZE_MB >= 1 and LOG_MAX_BACKUPS >= 0")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// LogConfig maps the logging settings onto log.Config for component.
func (c *Config) LogConfig(component string) log.Config {
	level, _ := log.ParseLevel(c.LogLevel)
	return log.Config{
		Level:      level,
		Format:     c.LogFormat,
		Component:  component,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	}
}

// Addr is the server listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func checkHTTPURL(name, raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid %s '%s': %v", name, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Sprintf("invalid %s '%s': missing host", name, raw)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv is getEnv for settings where an explicitly empty value means off.
func lookupEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
