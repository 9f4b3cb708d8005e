// Package config loads service settings from the environment. A .env file in
// the working directory is read first when present; real environment
// variables always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Audit sink kinds.
const (
	AuditSinkLog   = "log"
	AuditSinkKafka = "kafka"
	AuditSinkNone  = "none"
)

type Config struct {
	HTTPAddr        string
	MaxInflight     int
	ShutdownTimeout time.Duration

	DatabaseURL string
	DBMigrate   bool
	DevSeed     bool

	LogLevel  string
	LogFormat string

	LockTimeout time.Duration

	AuditSink     string
	KafkaBrokers  []string
	AuditTopic    string
	AuditTimeout  time.Duration
	AuditBuffer   int
	AuditAttempts int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// Load reads .env (if any) and the environment, applies defaults and validates.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var errList []error
	c := Config{
		HTTPAddr:    str("HTTP_ADDR", ":8080"),
		DatabaseURL: str("DATABASE_URL", ""),
		LogLevel:    str("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(str("LOG_FORMAT", "json")),
		AuditSink:   strings.ToLower(str("AUDIT_SINK", AuditSinkLog)),
		AuditTopic:  str("AUDIT_TOPIC", "audit_events"),
		JWTSecret:   str("JWT_HS256_SECRET", ""),
		JWTIssuer:   str("JWT_ISSUER", ""),
		JWTAudience: str("JWT_AUDIENCE", ""),
	}
	c.MaxInflight = integer("HTTP_MAX_INFLIGHT", 64, &errList)
	c.ShutdownTimeout = duration("SHUTDOWN_TIMEOUT", 10*time.Second, &errList)
	c.DBMigrate = boolean("DB_MIGRATE", false, &errList)
	c.DevSeed = boolean("DEV_SEED", false, &errList)
	c.LockTimeout = duration("LOCK_TIMEOUT", 5*time.Second, &errList)
	c.AuditTimeout = duration("AUDIT_TIMEOUT", 3*time.Second, &errList)
	c.AuditBuffer = integer("AUDIT_BUFFER", 1024, &errList)
	c.AuditAttempts = integer("AUDIT_ATTEMPTS", 2, &errList)
	for _, b := range strings.Split(str("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			c.KafkaBrokers = append(c.KafkaBrokers, b)
		}
	}
	if err := errors.Join(errList...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Validate checks settings that only make sense together.
func (c Config) Validate() error {
	switch c.AuditSink {
	case AuditSinkLog, AuditSinkNone:
	case AuditSinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("AUDIT_SINK=kafka requires KAFKA_BROKERS")
		}
		if c.AuditTopic == "" {
			return errors.New("AUDIT_SINK=kafka requires AUDIT_TOPIC")
		}
	default:
		return fmt.Errorf("AUDIT_SINK must be one of log, kafka, none; got %q", c.AuditSink)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text; got %q", c.LogFormat)
	}
	if c.LockTimeout <= 0 {
		return errors.New("LOCK_TIMEOUT must be positive")
	}
	if c.AuditTimeout <= 0 {
		return errors.New("AUDIT_TIMEOUT must be positive")
	}
	if c.MaxInflight < 0 || c.AuditBuffer < 1 || c.AuditAttempts < 1 {
		return errors.New("HTTP_MAX_INFLIGHT must be >= 0, AUDIT_BUFFER and AUDIT_ATTEMPTS >= 1")
	}
	if c.DBMigrate && c.DatabaseURL == "" {
		return errors.New("DB_MIGRATE requires DATABASE_URL")
	}
	return nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func boolean(key string, def bool, errList *[]error) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	*errList = append(*errList, fmt.Errorf("%s: invalid boolean %q", key, v))
	return def
}

func integer(key string, def int, errList *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errList = append(*errList, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func duration(key string, def time.Duration, errList *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errList = append(*errList, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
