package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Storage drivers understood by the repository factory.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Route surfaces that can be mounted independently.
const (
	SurfaceForms     = "forms"
	SurfaceMessaging = "messaging"
)

// Config holds every runtime setting, read once at startup.
type Config struct {
	AppEnv           string
	LogLevel         string
	LogFormat        string
	HTTPListenAddr   string
	PublicBasePath   string
	MetricsNamespace string
	Surfaces         []string
	CORSOrigins      []string

	StorageDriver string
	SQLitePath    string
	DatabaseURL   string
	DBSchema      string
	SeedDemoData  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	OutboxWorkers     int
	OutboxMaxAttempts int
	OutboxBackoff     time.Duration
	OutboxBuffer      int

	MailgunAPIKey string
	MailgunDomain string
	MailgunRegion string
	MailFromName  string
	NotifyEmail   string
	MailTimeout   time.Duration

	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppAPIVersion    string
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppTimeout       time.Duration
	InboundDedupeTTL      time.Duration

	Location           *time.Location
	BusinessHoursStart int
	BusinessHoursEnd   int

	FormRateLimit float64
	FormRateBurst int

	RequireAuth   bool
	AdminUsername string
	AdminPassword string
}

// Load reads configuration from the process environment.
func Load() (Config, error) {
	return loadFrom(os.Getenv)
}

func loadFrom(getenv func(string) string) (Config, error) {
	env := envReader{get: getenv}

	cfg := Config{
		AppEnv:           env.str("APP_ENV", "development"),
		LogLevel:         env.str("LOG_LEVEL", "info"),
		LogFormat:        env.str("LOG_FORMAT", "text"),
		HTTPListenAddr:   env.str("HTTP_LISTEN_ADDR", ""),
		PublicBasePath:   env.str("PUBLIC_BASE_PATH", ""),
		MetricsNamespace: env.str("METRICS_NAMESPACE", "kwikflow"),
		Surfaces:         env.list("APP_SURFACES", []string{SurfaceForms, SurfaceMessaging}),
		CORSOrigins:      env.list("CORS_ALLOWED_ORIGINS", []string{"*"}),

		StorageDriver: strings.ToLower(env.str("STORAGE_DRIVER", StorageMemory)),
		SQLitePath:    env.str("SQLITE_PATH", "data/kwikflow.db"),
		DatabaseURL:   env.str("DATABASE_URL", ""),
		DBSchema:      env.str("DATABASE_SCHEMA", ""),
		SeedDemoData:  env.boolean("SEED_DEMO_DATA", false),

		RedisAddr:     env.str("REDIS_ADDR", ""),
		RedisPassword: env.str("REDIS_PASSWORD", ""),
		RedisDB:       env.integer("REDIS_DB", 0),
		RedisTLS:      env.boolean("REDIS_TLS", false),

		OutboxWorkers:     env.integer("OUTBOX_WORKERS", 4),
		OutboxMaxAttempts: env.integer("OUTBOX_MAX_ATTEMPTS", 5),
		OutboxBackoff:     env.duration("OUTBOX_BACKOFF", 2*time.Second),
		OutboxBuffer:      env.integer("OUTBOX_BUFFER", 256),

		MailgunAPIKey: env.str("MAILGUN_API_KEY", ""),
		MailgunDomain: env.str("MAILGUN_DOMAIN", ""),
		MailgunRegion: strings.ToLower(env.str("MAILGUN_REGION", "eu")),
		MailFromName:  env.str("MAIL_FROM_NAME", "KwikFlow"),
		NotifyEmail:   env.str("NOTIFY_EMAIL", "hello@kwikflow.co.za"),
		MailTimeout:   env.duration("MAIL_TIMEOUT", 15*time.Second),

		WhatsAppPhoneNumberID: env.str("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAccessToken:   env.str("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppAPIVersion:    env.str("WHATSAPP_API_VERSION", "v20.0"),
		WhatsAppVerifyToken:   env.str("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     env.str("WHATSAPP_APP_SECRET", ""),
		WhatsAppTimeout:       env.duration("WHATSAPP_TIMEOUT", 30*time.Second),
		InboundDedupeTTL:      env.duration("INBOUND_DEDUPE_TTL", 24*time.Hour),

		BusinessHoursStart: env.integer("BUSINESS_HOURS_START", 9),
		BusinessHoursEnd:   env.integer("BUSINESS_HOURS_END", 17),

		FormRateLimit: env.float("FORM_RATE_LIMIT", 0.2),
		FormRateBurst: env.integer("FORM_RATE_BURST", 5),

		RequireAuth:   env.boolean("REQUIRE_AUTH", false),
		AdminUsername: env.str("ADMIN_USERNAME", ""),
		AdminPassword: env.str("ADMIN_PASSWORD", ""),
	}

	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":" + env.str("PORT", "8080")
	}

	tz := env.str("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		env.errs = append(env.errs, fmt.Errorf("TIMEZONE %q: %w", tz, err))
		loc = time.UTC
	}
	cfg.Location = loc

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	for _, s := range c.Surfaces {
		if s != SurfaceForms && s != SurfaceMessaging {
			errs = append(errs, fmt.Errorf("unknown APP_SURFACES entry %q", s))
		}
	}
	if c.MailgunRegion != "eu" && c.MailgunRegion != "us" {
		errs = append(errs, fmt.Errorf("MAILGUN_REGION must be eu or us, got %q", c.MailgunRegion))
	}
	if c.BusinessHoursStart < 0 || c.BusinessHoursEnd > 24 || c.BusinessHoursStart >= c.BusinessHoursEnd {
		errs = append(errs, fmt.Errorf("invalid business hours %d-%d", c.BusinessHoursStart, c.BusinessHoursEnd))
	}
	if c.OutboxWorkers <= 0 {
		errs = append(errs, errors.New("OUTBOX_WORKERS must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("OUTBOX_MAX_ATTEMPTS must be positive"))
	}
	if c.RequireAuth && (c.AdminUsername == "" || c.AdminPassword == "") {
		errs = append(errs, errors.New("REQUIRE_AUTH needs ADMIN_USERNAME and ADMIN_PASSWORD"))
	}
	return errors.Join(errs...)
}

// SurfaceEnabled reports whether the named route surface should be mounted.
func (c Config) SurfaceEnabled(name string) bool {
	for _, s := range c.Surfaces {
		if s == name {
			return true
		}
	}
	return false
}

// MailConfigured reports whether Mailgun credentials are present.
func (c Config) MailConfigured() bool {
	return c.MailgunAPIKey != "" && c.MailgunDomain != ""
}

// WhatsAppConfigured reports whether outbound Cloud API credentials are present.
func (c Config) WhatsAppConfigured() bool {
	return c.WhatsAppPhoneNumberID != "" && c.WhatsAppAccessToken != ""
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

type envReader struct {
	get  func(string) string
	errs []error
}

func (e *envReader) str(key, def string) string {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	return v
}

func (e *envReader) list(key string, def []string) []string {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func (e *envReader) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
