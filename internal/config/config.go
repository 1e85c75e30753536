package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage backend: memory or sqlite
	Backend      string
	SQLiteDBPath string

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Alert thresholds as percentages of the monthly limit
	WarningPct  float64
	CriticalPct float64

	// Anomaly detection
	AnomalyMultiplier float64
	AnomalyMinSamples int

	// Reporting
	TrendWindowDays int
	ExportDir       string
	ExportInterval  time.Duration

	// Google Sheets report export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8082"),

		Backend:      getEnv("STORE_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetwatch.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "budgetwatch"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "record_analyzed"),

		WarningPct:  getEnvFloat("BUDGET_WARNING_PCT", 60),
		CriticalPct: getEnvFloat("BUDGET_CRITICAL_PCT", 80),

		AnomalyMultiplier: getEnvFloat("ANOMALY_MULTIPLIER", 2.0),
		AnomalyMinSamples: getEnvInt("ANOMALY_MIN_SAMPLES", 3),

		TrendWindowDays: getEnvInt("TREND_WINDOW_DAYS", 7),
		ExportDir:       getEnv("EXPORT_DIR", "./exports"),
		ExportInterval:  getEnvDuration("EXPORT_INTERVAL", time.Hour),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Reports"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Backend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of [memory sqlite]", c.Backend))
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

	if c.WarningPct <= 0 || c.CriticalPct <= 0 {
		errors = append(errors, fmt.Sprintf("alert thresholds must be positive, got warning=%.1f critical=%.1f", c.WarningPct, c.CriticalPct))
	} else {
		if c.WarningPct >= c.CriticalPct {
			errors = append(errors, fmt.Sprintf("warning threshold %.1f must be below critical threshold %.1f", c.WarningPct, c.CriticalPct))
		}
		if c.CriticalPct > 100 {
			errors = append(errors, fmt.Sprintf("critical threshold %.1f must not exceed 100", c.CriticalPct))
		}
	}

	if c.AnomalyMultiplier <= 0 {
		errors = append(errors, fmt.Sprintf("invalid anomaly multiplier %.2f: must be positive", c.AnomalyMultiplier))
	}
	if c.AnomalyMinSamples < 1 {
		errors = append(errors, fmt.Sprintf("invalid anomaly minimum samples %d: must be at least 1", c.AnomalyMinSamples))
	}

	if c.TrendWindowDays < 1 || c.TrendWindowDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid trend window %d: must be between 1 and 365 days", c.TrendWindowDays))
	}

	if c.ExportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google sheet name cannot be empty when a spreadsheet ID is provided")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
