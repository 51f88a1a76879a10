package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/SscSPs/takas_swap_engine/internal/core/domain"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string `validate:"required"`
	Port          string `validate:"required,numeric"`
	IsProduction  bool
	EnableDBCheck bool
	JWTSecret     string `validate:"required,min=16"`
	JWTIssuer     string

	// Delivery secrets
	QRSigningSecret   string        `validate:"required,min=16,max=64"`
	CodeTTL           time.Duration `validate:"gt=0"`
	MaxDeliveryPhotos int           `validate:"min=1,max=20"`
	DeliveryRateLimit string        `validate:"required"` // ulule/limiter format, e.g. "10-M"
	GlobalRateLimit   string        `validate:"required"` // per client IP across all routes

	// Settlement
	PlatformAccountID  string `validate:"required"`
	PlatformFeePercent decimal.Decimal
	DisputeWindow      time.Duration `validate:"gt=0"`

	// Dispute window sweep
	SweepInterval   time.Duration `validate:"gt=0"`
	SweepBatchSize  int           `validate:"min=1,max=10000"`
	RiverMaxWorkers int           `validate:"min=1,max=1000"`

	DepositRates map[domain.TrustLevel]decimal.Decimal

	RiskLowMaxPrice      int64 `validate:"gte=0"`
	RiskHighMinPrice     int64 `validate:"gtfield=RiskLowMaxPrice"`
	RiskCategoryMinPrice int64 `validate:"gte=0"`
	RiskHighCategories   []string

	EligibilityMinActiveListings  int           `validate:"gte=0"`
	EligibilityNewAccountAge      time.Duration `validate:"gte=0"`
	EligibilityAttemptWindow      time.Duration `validate:"gt=0"`
	EligibilityMaxAttempts        int           `validate:"min=1"`
	EligibilityEarlySwapCount     int           `validate:"gte=0"`
	EligibilitySpeculativeGainCap int64         `validate:"gte=0"`

	NotificationWebhookURL string `validate:"omitempty,url"`
	CORSAllowedOrigins     []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("QR_SIGNING_SECRET", "change-me-qr-signing-secret-please")
	v.SetDefault("CODE_TTL", "24h")
	v.SetDefault("MAX_DELIVERY_PHOTOS", 5)
	v.SetDefault("DELIVERY_RATE_LIMIT", "10-M")
	v.SetDefault("PLATFORM_ACCOUNT_ID", "platform")
	v.SetDefault("PLATFORM_FEE_PERCENT", "0.05")
	v.SetDefault("DISPUTE_WINDOW", "72h")
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_BATCH_SIZE", 100)
	v.SetDefault("RIVER_MAX_WORKERS", 10)
	v.SetDefault("DEPOSIT_RATE_NEW", "0.15")
	v.SetDefault("DEPOSIT_RATE_BASIC", "0.10")
	v.SetDefault("DEPOSIT_RATE_VERIFIED", "0.07")
	v.SetDefault("DEPOSIT_RATE_TRUSTED", "0.05")
	v.SetDefault("RISK_LOW_MAX_PRICE", 500)
	v.SetDefault("RISK_HIGH_MIN_PRICE", 5000)
	v.SetDefault("RISK_CATEGORY_MIN_PRICE", 1000)
	v.SetDefault("RISK_HIGH_CATEGORIES", "electronics,jewelry,vehicles")
	v.SetDefault("ELIGIBILITY_MIN_ACTIVE_LISTINGS", 1)
	v.SetDefault("ELIGIBILITY_NEW_ACCOUNT_AGE", "168h")
	v.SetDefault("ELIGIBILITY_ATTEMPT_WINDOW", "24h")
	v.SetDefault("ELIGIBILITY_MAX_ATTEMPTS", 3)
	v.SetDefault("ELIGIBILITY_EARLY_SWAP_COUNT", 5)
	v.SetDefault("ELIGIBILITY_SPECULATIVE_GAIN_CAP", 1000)
	v.SetDefault("NOTIFICATION_WEBHOOK_URL", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("GLOBAL_RATE_LIMIT", "300-M")
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:            v.GetString("PGSQL_URL"),
		Port:                   v.GetString("PORT"),
		IsProduction:           v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:          v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		JWTIssuer:              v.GetString("JWT_ISSUER"),
		QRSigningSecret:        v.GetString("QR_SIGNING_SECRET"),
		MaxDeliveryPhotos:      v.GetInt("MAX_DELIVERY_PHOTOS"),
		DeliveryRateLimit:      v.GetString("DELIVERY_RATE_LIMIT"),
		GlobalRateLimit:        v.GetString("GLOBAL_RATE_LIMIT"),
		PlatformAccountID:      v.GetString("PLATFORM_ACCOUNT_ID"),
		SweepBatchSize:         v.GetInt("SWEEP_BATCH_SIZE"),
		RiverMaxWorkers:        v.GetInt("RIVER_MAX_WORKERS"),
		RiskLowMaxPrice:        v.GetInt64("RISK_LOW_MAX_PRICE"),
		RiskHighMinPrice:       v.GetInt64("RISK_HIGH_MIN_PRICE"),
		RiskCategoryMinPrice:   v.GetInt64("RISK_CATEGORY_MIN_PRICE"),
		RiskHighCategories:     splitList(v.GetString("RISK_HIGH_CATEGORIES")),
		NotificationWebhookURL: v.GetString("NOTIFICATION_WEBHOOK_URL"),
		CORSAllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		EligibilityMinActiveListings:  v.GetInt("ELIGIBILITY_MIN_ACTIVE_LISTINGS"),
		EligibilityMaxAttempts:        v.GetInt("ELIGIBILITY_MAX_ATTEMPTS"),
		EligibilityEarlySwapCount:     v.GetInt("ELIGIBILITY_EARLY_SWAP_COUNT"),
		EligibilitySpeculativeGainCap: v.GetInt64("ELIGIBILITY_SPECULATIVE_GAIN_CAP"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CODE_TTL", &cfg.CodeTTL},
		{"DISPUTE_WINDOW", &cfg.DisputeWindow},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"ELIGIBILITY_NEW_ACCOUNT_AGE", &cfg.EligibilityNewAccountAge},
		{"ELIGIBILITY_ATTEMPT_WINDOW", &cfg.EligibilityAttemptWindow},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(v.GetString(d.key)); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", d.key, err)
		}
	}

	if cfg.PlatformFeePercent, err = parseFraction(v, "PLATFORM_FEE_PERCENT"); err != nil {
		return nil, err
	}
	cfg.DepositRates = make(map[domain.TrustLevel]decimal.Decimal, 4)
	for level, key := range map[domain.TrustLevel]string{
		domain.TrustNew:      "DEPOSIT_RATE_NEW",
		domain.TrustBasic:    "DEPOSIT_RATE_BASIC",
		domain.TrustVerified: "DEPOSIT_RATE_VERIFIED",
		domain.TrustTrusted:  "DEPOSIT_RATE_TRUSTED",
	} {
		if cfg.DepositRates[level], err = parseFraction(v, key); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}
	if !cfg.IsProduction && v.GetString("JWT_SECRET") == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for level, rate := range c.DepositRates {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("invalid configuration: deposit rate for %s must be within [0, 1]", level)
		}
	}
	if c.PlatformFeePercent.IsNegative() || c.PlatformFeePercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid configuration: PLATFORM_FEE_PERCENT must be within [0, 1)")
	}
	if c.IsProduction && c.QRSigningSecret == "change-me-qr-signing-secret-please" {
		return fmt.Errorf("invalid configuration: QR_SIGNING_SECRET must be set in production")
	}
	return nil
}

// DepositPolicy builds the deposit calculator's rate table.
func (c *Config) DepositPolicy() domain.DepositPolicy {
	rates := make(map[domain.TrustLevel]decimal.Decimal, len(c.DepositRates))
	for k, v := range c.DepositRates {
		rates[k] = v
	}
	return domain.DepositPolicy{Rates: rates}
}

// RiskPolicy builds the risk classifier.
func (c *Config) RiskPolicy() domain.RiskPolicy {
	return domain.RiskPolicy{
		LowMaxPrice:        c.RiskLowMaxPrice,
		HighMinPrice:       c.RiskHighMinPrice,
		HighRiskMinPrice:   c.RiskCategoryMinPrice,
		HighRiskCategories: append([]string(nil), c.RiskHighCategories...),
	}
}

// EligibilityPolicy builds the anti-abuse thresholds.
func (c *Config) EligibilityPolicy() domain.EligibilityPolicy {
	return domain.EligibilityPolicy{
		MinActiveListings:  c.EligibilityMinActiveListings,
		NewAccountAge:      c.EligibilityNewAccountAge,
		AttemptWindow:      c.EligibilityAttemptWindow,
		MaxAttempts:        c.EligibilityMaxAttempts,
		EarlySwapCount:     c.EligibilityEarlySwapCount,
		SpeculativeGainCap: c.EligibilitySpeculativeGainCap,
	}
}

func parseFraction(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
