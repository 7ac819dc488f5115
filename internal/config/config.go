package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the matching engine.
type Config struct {
	Port               int
	LogLevel           string
	FeeRate            string
	MaxMatchIterations int
	SettleRetries      int
	ExpirationInterval time.Duration
	BookDepth          int
	AuditBuffer        int

	// Optional collaborators; empty disables the integration.
	DatabaseURL      string
	KafkaBrokers     []string
	KafkaAuditTopic  string
	CompaniesURL     string
	CompaniesTimeout time.Duration
	CompanySeed      string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applies defaults, and
// validates values. An optional .env file is loaded first; a missing file
// is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	feeRate := getStr("FEE_RATE", "0.01")

	maxIter, err := getInt("MAX_MATCH_ITERATIONS", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_MATCH_ITERATIONS: %w", err)
	}
	if maxIter < 1 {
		return nil, fmt.Errorf("MAX_MATCH_ITERATIONS must be >= 1")
	}

	settleRetries, err := getInt("SETTLE_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SETTLE_RETRIES: %w", err)
	}
	if settleRetries < 0 {
		return nil, fmt.Errorf("SETTLE_RETRIES must be >= 0")
	}

	expirationInterval, err := getDuration("EXPIRATION_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid EXPIRATION_INTERVAL: %w", err)
	}

	bookDepth, err := getInt("BOOK_DEPTH", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOK_DEPTH: %w", err)
	}
	if bookDepth < 1 || bookDepth > 50 {
		return nil, fmt.Errorf("BOOK_DEPTH must be between 1 and 50")
	}

	auditBuffer, err := getInt("AUDIT_BUFFER", 1024)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_BUFFER: %w", err)
	}

	companiesTimeout, err := getDuration("COMPANIES_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPANIES_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}
	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		FeeRate:            feeRate,
		MaxMatchIterations: maxIter,
		SettleRetries:      settleRetries,
		ExpirationInterval: expirationInterval,
		BookDepth:          bookDepth,
		AuditBuffer:        auditBuffer,
		DatabaseURL:        getStr("DATABASE_URL", ""),
		KafkaBrokers:       getList("KAFKA_BROKERS"),
		KafkaAuditTopic:    getStr("KAFKA_AUDIT_TOPIC", "marketplace.audit"),
		CompaniesURL:       getStr("COMPANIES_URL", ""),
		CompaniesTimeout:   companiesTimeout,
		CompanySeed:        getStr("COMPANY_SEED", ""),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		IdleTimeout:        idleTimeout,
		ShutdownTimeout:    shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
