package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RefundTier maps a minimum number of hours before session start to the
// refund percentage granted when cancelling inside that window.
type RefundTier struct {
	HoursBefore   float64
	RefundPercent float64
}

type Config struct {
	Port      string
	DBUrl     string
	JWTSecret string
	AppEnv    string

	StripeSecretKey     string
	StripeWebhookSecret string

	MidtransServerKey  string
	MidtransProduction bool

	// AllowUnsignedCallbacks skips the regional-gateway hash check when a
	// callback arrives with no signature at all. Local sandbox use only;
	// refused outside development regardless of the flag.
	AllowUnsignedCallbacks bool

	ZoomAccountID      string
	ZoomClientID       string
	ZoomClientSecret   string
	ZoomBaseURL        string
	ZoomOAuthURL       string
	ZoomRetryBaseDelay time.Duration

	DeepgramAPIKey string

	StorageURL        string
	StorageBucket     string
	StorageServiceKey string

	PlatformCommissionRate  float64
	PaymentReleaseHold      time.Duration
	TranscriptSweepInterval time.Duration
	TranscriptRetryWindow   time.Duration
	BalanceSweepInterval    time.Duration
	ReminderLeadTime        time.Duration
	RefundTiers             []RefundTier
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	tiers, err := parseRefundTiers(getEnv("REFUND_TIERS", "24:100,12:75,2:50,0:25"))
	if err != nil {
		return nil, fmt.Errorf("REFUND_TIERS: %w", err)
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		DBUrl:     getEnv("DB_URL", ""),
		JWTSecret: jwtSecret,
		AppEnv:    normalizeEnv(getEnv("APP_ENV", "production")),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		MidtransServerKey:  getEnv("MIDTRANS_SERVER_KEY", ""),
		MidtransProduction: getEnvBool("MIDTRANS_PRODUCTION", false),

		AllowUnsignedCallbacks: getEnvBool("PAYMENT_ALLOW_UNSIGNED_CALLBACKS", false),

		ZoomAccountID:      getEnv("ZOOM_ACCOUNT_ID", ""),
		ZoomClientID:       getEnv("ZOOM_CLIENT_ID", ""),
		ZoomClientSecret:   getEnv("ZOOM_CLIENT_SECRET", ""),
		ZoomBaseURL:        getEnv("ZOOM_BASE_URL", "https://api.zoom.us/v2"),
		ZoomOAuthURL:       getEnv("ZOOM_OAUTH_URL", "https://zoom.us/oauth/token"),
		ZoomRetryBaseDelay: getEnvDuration("ZOOM_RETRY_BASE_DELAY", time.Second),

		DeepgramAPIKey: getEnv("DEEPGRAM_API_KEY", ""),

		StorageURL:        getEnv("STORAGE_URL", ""),
		StorageBucket:     getEnv("STORAGE_BUCKET", ""),
		StorageServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),

		PlatformCommissionRate:  getEnvFloat("PLATFORM_COMMISSION_RATE", 0.15),
		PaymentReleaseHold:      getEnvDuration("PAYMENT_RELEASE_HOLD", 72*time.Hour),
		TranscriptSweepInterval: getEnvDuration("TRANSCRIPT_SWEEP_INTERVAL", 30*time.Minute),
		TranscriptRetryWindow:   getEnvDuration("TRANSCRIPT_RETRY_WINDOW", 24*time.Hour),
		BalanceSweepInterval:    getEnvDuration("BALANCE_SWEEP_INTERVAL", time.Hour),
		ReminderLeadTime:        getEnvDuration("REMINDER_LEAD_TIME", 15*time.Minute),
		RefundTiers:             tiers,
	}, nil
}

// TranscriptAttemptCeiling derives the sweep attempt cap from the total retry
// window divided by the sweep interval, e.g. 24h / 30m = 48 attempts.
func (c *Config) TranscriptAttemptCeiling() int {
	if c.TranscriptSweepInterval <= 0 {
		return 0
	}
	return int(c.TranscriptRetryWindow / c.TranscriptSweepInterval)
}

// RefundPercentFor returns the refund percentage for a cancellation made
// hoursBefore the scheduled start. Tiers are evaluated from the most to the
// least generous window.
func (c *Config) RefundPercentFor(hoursBefore float64) float64 {
	for _, tier := range c.RefundTiers {
		if hoursBefore >= tier.HoursBefore {
			return tier.RefundPercent
		}
	}
	return 0
}

func parseRefundTiers(raw string) ([]RefundTier, error) {
	parts := strings.Split(raw, ",")
	tiers := make([]RefundTier, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid tier %q, expected hours:percent", part)
		}
		hours, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier hours %q", fields[0])
		}
		percent, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tier percent %q", fields[1])
		}
		if percent < 0 || percent > 100 {
			return nil, fmt.Errorf("tier percent %q out of range", fields[1])
		}
		tiers = append(tiers, RefundTier{HoursBefore: hours, RefundPercent: percent})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no refund tiers configured")
	}
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].HoursBefore > tiers[j].HoursBefore
	})
	return tiers, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// UnsignedCallbacksAllowed reports whether payment callbacks may arrive
// without a signature. The flag only takes effect in development; any other
// environment requires signed callbacks no matter what the flag says.
func (c *Config) UnsignedCallbacksAllowed() bool {
	return c.IsDevelopment() && c.AllowUnsignedCallbacks
}
