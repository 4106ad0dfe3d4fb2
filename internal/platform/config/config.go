// Package config loads server configuration from the environment with
// command-line flag overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	LogLevel      string
	// AdminToken guards the snapshot maintenance routes; empty disables them.
	AdminToken    string
}

// RedisConfig configures the key-value collaborator. An empty URL selects
// the in-memory store.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the snapshot record store. An empty DSN selects
// the in-memory store.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the audit transport. No brokers means audit events
// stay in memory.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ArchiveConfig selects where snapshot assets live.
type ArchiveConfig struct {
	Backend    string // "fs" or "s3"
	Root       string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

// EncryptionConfig selects the snapshot encryptor.
type EncryptionConfig struct {
	Mode          string // "none", "age" or "xchacha"
	AgeRecipients []string
	XChaChaKey    string // base64, 32 bytes
}

// SubmissionConfig tunes the submission pipeline.
type SubmissionConfig struct {
	DefaultMethod         string
	FallbackMethod        string
	AutoFallback          bool
	MaxRetries            int
	ArchiveOnSubmit       bool
	PortalTimeout         time.Duration
	BrowserEndpoint       string
	HandshakePollInterval time.Duration
	HandshakeMaxPolls     int
	MinTokenLength        int
	FieldFillAttempts     int
	FieldFillBackoff      time.Duration
	MarkerTTL             time.Duration
	BreakerFailures       int
	BreakerCooldown       time.Duration
	// RateLimit caps submissions per user within RateWindow; zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// RetentionConfig drives the background snapshot cleanup.
type RetentionConfig struct {
	MaxAgeDays    int
	MaxCount      int
	KeepCompleted bool
	Interval      time.Duration
	OrphanGrace   time.Duration
}

type Config struct {
	Server           Server
	Redis            RedisConfig
	Postgres         PostgresConfig
	Kafka            KafkaConfig
	Archive          ArchiveConfig
	Encryption       EncryptionConfig
	Submission       SubmissionConfig
	Retention        RetentionConfig
	DestinationsFile string
}

// Defaults returns a configuration suitable for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Addr:          ":8080",
			JWTSigningKey: "dev-secret-key-change-in-production",
			JWTIssuer:     "entrypass",
			LogLevel:      "info",
		},
		Redis: RedisConfig{
			KeyPrefix:    "entrypass:",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{Topic: "entrypass.audit"},
		Archive: ArchiveConfig{
			Backend: "fs",
			Root:    "./data/archive",
		},
		Encryption: EncryptionConfig{Mode: "none"},
		Submission: SubmissionConfig{
			DefaultMethod:         "hybrid",
			FallbackMethod:        "webview",
			MaxRetries:            2,
			PortalTimeout:         30 * time.Second,
			HandshakePollInterval: 500 * time.Millisecond,
			HandshakeMaxPolls:     60,
			MinTokenLength:        100,
			FieldFillAttempts:     15,
			FieldFillBackoff:      200 * time.Millisecond,
			MarkerTTL:             5 * time.Minute,
			BreakerFailures:       3,
			BreakerCooldown:       2 * time.Minute,
			RateLimit:             10,
			RateWindow:            time.Hour,
		},
		Retention: RetentionConfig{
			MaxAgeDays:    90,
			KeepCompleted: true,
			Interval:      6 * time.Hour,
			OrphanGrace:   time.Hour,
		},
	}
}

// Load applies environment variables and then flags on top of Defaults.
func Load(args []string) (Config, error) {
	cfg := Defaults()
	if err := cfg.fromEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	fs := pflag.NewFlagSet("entrypass", pflag.ContinueOnError)
	cfg.bindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) fromEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = b
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = d
		}
	}

	str("ENTRYPASS_ADDR", &c.Server.Addr)
	str("JWT_SIGNING_KEY", &c.Server.JWTSigningKey)
	str("JWT_ISSUER", &c.Server.JWTIssuer)
	str("LOG_LEVEL", &c.Server.LogLevel)
	str("ADMIN_TOKEN", &c.Server.AdminToken)

	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_KEY_PREFIX", &c.Redis.KeyPrefix)
	num("REDIS_POOL_SIZE", &c.Redis.PoolSize)

	str("DATABASE_URL", &c.Postgres.DSN)

	list("KAFKA_BROKERS", &c.Kafka.Brokers)
	str("KAFKA_AUDIT_TOPIC", &c.Kafka.Topic)

	str("ARCHIVE_BACKEND", &c.Archive.Backend)
	str("ARCHIVE_ROOT", &c.Archive.Root)
	str("ARCHIVE_S3_BUCKET", &c.Archive.S3Bucket)
	str("ARCHIVE_S3_REGION", &c.Archive.S3Region)
	str("ARCHIVE_S3_ENDPOINT", &c.Archive.S3Endpoint)
	str("ARCHIVE_S3_PREFIX", &c.Archive.S3Prefix)

	str("SNAPSHOT_ENCRYPTION", &c.Encryption.Mode)
	list("SNAPSHOT_AGE_RECIPIENTS", &c.Encryption.AgeRecipients)
	str("SNAPSHOT_XCHACHA_KEY", &c.Encryption.XChaChaKey)

	str("SUBMISSION_DEFAULT_METHOD", &c.Submission.DefaultMethod)
	str("SUBMISSION_FALLBACK_METHOD", &c.Submission.FallbackMethod)
	boolean("SUBMISSION_AUTO_FALLBACK", &c.Submission.AutoFallback)
	num("SUBMISSION_MAX_RETRIES", &c.Submission.MaxRetries)
	boolean("SUBMISSION_ARCHIVE_ON_SUBMIT", &c.Submission.ArchiveOnSubmit)
	dur("PORTAL_TIMEOUT", &c.Submission.PortalTimeout)
	str("BROWSER_ENDPOINT", &c.Submission.BrowserEndpoint)
	dur("HANDSHAKE_POLL_INTERVAL", &c.Submission.HandshakePollInterval)
	num("HANDSHAKE_MAX_POLLS", &c.Submission.HandshakeMaxPolls)
	num("HANDSHAKE_MIN_TOKEN_LENGTH", &c.Submission.MinTokenLength)
	num("FIELD_FILL_ATTEMPTS", &c.Submission.FieldFillAttempts)
	dur("FIELD_FILL_BACKOFF", &c.Submission.FieldFillBackoff)
	dur("SUBMISSION_MARKER_TTL", &c.Submission.MarkerTTL)
	num("SUBMISSION_BREAKER_FAILURES", &c.Submission.BreakerFailures)
	dur("SUBMISSION_BREAKER_COOLDOWN", &c.Submission.BreakerCooldown)
	num("SUBMISSION_RATE_LIMIT", &c.Submission.RateLimit)
	dur("SUBMISSION_RATE_WINDOW", &c.Submission.RateWindow)

	num("RETENTION_MAX_AGE_DAYS", &c.Retention.MaxAgeDays)
	num("RETENTION_MAX_COUNT", &c.Retention.MaxCount)
	boolean("RETENTION_KEEP_COMPLETED", &c.Retention.KeepCompleted)
	dur("RETENTION_INTERVAL", &c.Retention.Interval)
	dur("RETENTION_ORPHAN_GRACE", &c.Retention.OrphanGrace)

	str("DESTINATIONS_FILE", &c.DestinationsFile)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

func (c *Config) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
	fs.StringVar(&c.Server.LogLevel, "log-level", c.Server.LogLevel, "debug, info, warn or error")
	fs.StringVar(&c.Redis.URL, "redis-url", c.Redis.URL, "redis URL (empty: in-memory)")
	fs.StringVar(&c.Postgres.DSN, "database-url", c.Postgres.DSN, "postgres DSN for snapshot records (empty: in-memory)")
	fs.StringSliceVar(&c.Kafka.Brokers, "kafka-brokers", c.Kafka.Brokers, "audit Kafka brokers")
	fs.StringVar(&c.Archive.Backend, "archive-backend", c.Archive.Backend, "snapshot asset backend: fs or s3")
	fs.StringVar(&c.Archive.Root, "archive-root", c.Archive.Root, "filesystem root for snapshot assets")
	fs.StringVar(&c.Archive.S3Bucket, "archive-s3-bucket", c.Archive.S3Bucket, "S3 bucket for snapshot assets")
	fs.StringVar(&c.Encryption.Mode, "snapshot-encryption", c.Encryption.Mode, "none, age or xchacha")
	fs.StringVar(&c.Submission.DefaultMethod, "submission-method", c.Submission.DefaultMethod, "default submission method")
	fs.StringVar(&c.Submission.BrowserEndpoint, "browser-endpoint", c.Submission.BrowserEndpoint, "embedded browser driver URL")
	fs.IntVar(&c.Submission.RateLimit, "submission-rate-limit", c.Submission.RateLimit, "submissions per user per window (0: unlimited)")
	fs.BoolVar(&c.Submission.AutoFallback, "auto-fallback", c.Submission.AutoFallback, "run the fallback method automatically")
	fs.IntVar(&c.Retention.MaxAgeDays, "retention-max-age-days", c.Retention.MaxAgeDays, "snapshot max age in days")
	fs.IntVar(&c.Retention.MaxCount, "retention-max-count", c.Retention.MaxCount, "max snapshots kept (0: unlimited)")
	fs.StringVar(&c.DestinationsFile, "destinations", c.DestinationsFile, "YAML destination field-mapping file")
}

// Validate rejects combinations the server cannot run with.
func (c Config) Validate() error {
	switch c.Archive.Backend {
	case "fs":
		if c.Archive.Root == "" {
			return fmt.Errorf("archive root is required for fs backend")
		}
	case "s3":
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("archive s3 bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}

	switch c.Encryption.Mode {
	case "none", "":
	case "age":
		if len(c.Encryption.AgeRecipients) == 0 {
			return fmt.Errorf("age encryption requires at least one recipient")
		}
	case "xchacha":
		if c.Encryption.XChaChaKey == "" {
			return fmt.Errorf("xchacha encryption requires a key")
		}
	default:
		return fmt.Errorf("unknown snapshot encryption %q", c.Encryption.Mode)
	}

	if c.Submission.HandshakePollInterval <= 0 || c.Submission.HandshakeMaxPolls <= 0 {
		return fmt.Errorf("handshake poll interval and max polls must be positive")
	}
	if c.Submission.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.Submission.RateLimit > 0 && c.Submission.RateWindow <= 0 {
		return fmt.Errorf("submission rate window must be positive")
	}
	if c.Retention.MaxAgeDays < 0 || c.Retention.MaxCount < 0 {
		return fmt.Errorf("retention limits must not be negative")
	}
	if c.Retention.Interval <= 0 {
		return fmt.Errorf("retention interval must be positive")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
