// Package config loads the typed service configuration through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/roryk/backend/internal/models"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	// Take the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

type JWTConfig struct {
	SecretKey   string
	ExpiryHours int
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// LedgerConfig holds the monetary rules of the credit ledger.
type LedgerConfig struct {
	ServiceCost models.Money
	TopUpMin    models.Money
	TopUpMax    models.Money
	Currency    string
}

type PasswordConfig struct {
	ResetTTL         time.Duration
	MaxResetRequests int
	ResetWindow      time.Duration
	MinLength        int
	ResetURL         string
}

// RateLimitConfig holds per-IP request limits for the password endpoints.
type RateLimitConfig struct {
	Window         time.Duration
	ForgotPassword int
	ResetPassword  int
	ChangePassword int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether outgoing mail can be sent.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type VehicleConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
}

type BootstrapConfig struct {
	Username string
	Password string
	Email    string
}

type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Argon2    Argon2Config
	Ledger    LedgerConfig
	Password  PasswordConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Stripe    StripeConfig
	Vehicle   VehicleConfig
	Bootstrap BootstrapConfig
}

var envBindings = map[string]string{
	"server.port":                 "PORT",
	"server.env":                  "APP_ENV",
	"server.log_level":            "LOG_LEVEL",
	"server.allowed_origins":      "ALLOWED_ORIGINS",
	"server.trust_proxy":          "TRUST_PROXY",
	"database.host":               "DATABASE_HOST",
	"database.port":               "DATABASE_PORT",
	"database.user":               "DATABASE_USER",
	"database.password":           "DATABASE_PASSWORD",
	"database.name":               "DATABASE_NAME",
	"database.ssl_mode":           "DATABASE_SSL_MODE",
	"redis.host":                  "REDIS_HOST",
	"redis.port":                  "REDIS_PORT",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"jwt.secret_key":              "JWT_SECRET_KEY",
	"jwt.expiry_hours":            "JWT_EXPIRY_HOURS",
	"argon2.time":                 "ARGON2_TIME",
	"argon2.memory":               "ARGON2_MEMORY",
	"argon2.threads":              "ARGON2_THREADS",
	"argon2.key_length":           "ARGON2_KEY_LENGTH",
	"argon2.salt_length":          "ARGON2_SALT_LENGTH",
	"ledger.service_cost":         "LEDGER_SERVICE_COST",
	"ledger.topup_min":            "LEDGER_TOPUP_MIN",
	"ledger.topup_max":            "LEDGER_TOPUP_MAX",
	"ledger.currency":             "LEDGER_CURRENCY",
	"password.reset_ttl":          "PASSWORD_RESET_TTL",
	"password.max_reset_requests": "PASSWORD_MAX_RESET_REQUESTS",
	"password.reset_window":       "PASSWORD_RESET_WINDOW",
	"password.min_length":         "PASSWORD_MIN_LENGTH",
	"password.reset_url":          "FRONTEND_RESET_URL",
	"rate_limit.window":           "RATE_LIMIT_WINDOW",
	"rate_limit.forgot_password":  "RATE_LIMIT_FORGOT_PASSWORD",
	"rate_limit.reset_password":   "RATE_LIMIT_RESET_PASSWORD",
	"rate_limit.change_password":  "RATE_LIMIT_CHANGE_PASSWORD",
	"smtp.host":                   "SMTP_HOST",
	"smtp.port":                   "SMTP_PORT",
	"smtp.username":               "SMTP_USER",
	"smtp.password":               "SMTP_PASS",
	"smtp.from":                   "SMTP_FROM",
	"stripe.secret_key":           "STRIPE_SECRET_KEY",
	"stripe.webhook_secret":       "STRIPE_WEBHOOK_SECRET",
	"vehicle.base_url":            "VEHICLE_API_URL",
	"vehicle.api_key":             "VEHICLE_API_KEY",
	"vehicle.timeout":             "VEHICLE_API_TIMEOUT",
	"vehicle.max_retries":         "VEHICLE_API_MAX_RETRIES",
	"bootstrap.username":          "SUPERADMIN_USERNAME",
	"bootstrap.password":          "SUPERADMIN_PASSWORD",
	"bootstrap.email":             "SUPERADMIN_EMAIL",
}

// BindEnv maps every configuration key to its upper-snake environment variable.
func BindEnv() {
	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.allowed_origins", "http://localhost:3000")
	viper.SetDefault("server.trust_proxy", false)

	viper.SetDefault("jwt.expiry_hours", 24)

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	viper.SetDefault("ledger.service_cost", "1.00")
	viper.SetDefault("ledger.topup_min", "5.00")
	viper.SetDefault("ledger.topup_max", "500.00")
	viper.SetDefault("ledger.currency", "eur")

	viper.SetDefault("password.reset_ttl", time.Hour)
	viper.SetDefault("password.max_reset_requests", 3)
	viper.SetDefault("password.reset_window", 15*time.Minute)
	viper.SetDefault("password.min_length", 6)
	viper.SetDefault("password.reset_url", "http://localhost:3000/reset-password")

	viper.SetDefault("rate_limit.window", 15*time.Minute)
	viper.SetDefault("rate_limit.forgot_password", 3)
	viper.SetDefault("rate_limit.reset_password", 5)
	viper.SetDefault("rate_limit.change_password", 5)

	viper.SetDefault("smtp.port", 587)

	viper.SetDefault("vehicle.timeout", 10*time.Second)
	viper.SetDefault("vehicle.max_retries", 2)

	viper.SetDefault("bootstrap.username", "superadmin")
}

// Load applies defaults and reads the current viper state into a Config.
func Load() (*Config, error) {
	setDefaults()

	ledger, err := loadLedger()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			Env:            viper.GetString("server.env"),
			LogLevel:       viper.GetString("server.log_level"),
			AllowedOrigins: splitList(viper.GetString("server.allowed_origins")),
			TrustProxy:     viper.GetBool("server.trust_proxy"),
		},
		JWT: JWTConfig{
			SecretKey:   viper.GetString("jwt.secret_key"),
			ExpiryHours: viper.GetInt("jwt.expiry_hours"),
		},
		Argon2: Argon2Config{
			Time:       viper.GetUint32("argon2.time"),
			Memory:     viper.GetUint32("argon2.memory"),
			Threads:    uint8(viper.GetUint("argon2.threads")),
			KeyLength:  viper.GetUint32("argon2.key_length"),
			SaltLength: viper.GetUint32("argon2.salt_length"),
		},
		Ledger: *ledger,
		Password: PasswordConfig{
			ResetTTL:         viper.GetDuration("password.reset_ttl"),
			MaxResetRequests: viper.GetInt("password.max_reset_requests"),
			ResetWindow:      viper.GetDuration("password.reset_window"),
			MinLength:        viper.GetInt("password.min_length"),
			ResetURL:         viper.GetString("password.reset_url"),
		},
		RateLimit: RateLimitConfig{
			Window:         viper.GetDuration("rate_limit.window"),
			ForgotPassword: viper.GetInt("rate_limit.forgot_password"),
			ResetPassword:  viper.GetInt("rate_limit.reset_password"),
			ChangePassword: viper.GetInt("rate_limit.change_password"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("smtp.host"),
			Port:     viper.GetInt("smtp.port"),
			Username: viper.GetString("smtp.username"),
			Password: viper.GetString("smtp.password"),
			From:     viper.GetString("smtp.from"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("stripe.secret_key"),
			WebhookSecret: viper.GetString("stripe.webhook_secret"),
		},
		Vehicle: VehicleConfig{
			BaseURL:    viper.GetString("vehicle.base_url"),
			APIKey:     viper.GetString("vehicle.api_key"),
			Timeout:    viper.GetDuration("vehicle.timeout"),
			MaxRetries: viper.GetUint64("vehicle.max_retries"),
		},
		Bootstrap: BootstrapConfig{
			Username: viper.GetString("bootstrap.username"),
			Password: viper.GetString("bootstrap.password"),
			Email:    viper.GetString("bootstrap.email"),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("jwt.secret_key is required")
	}
	return cfg, nil
}

func loadLedger() (*LedgerConfig, error) {
	cost, err := models.ParseMoney(viper.GetString("ledger.service_cost"))
	if err != nil {
		return nil, fmt.Errorf("ledger.service_cost: %w", err)
	}
	minTopUp, err := models.ParseMoney(viper.GetString("ledger.topup_min"))
	if err != nil {
		return nil, fmt.Errorf("ledger.topup_min: %w", err)
	}
	maxTopUp, err := models.ParseMoney(viper.GetString("ledger.topup_max"))
	if err != nil {
		return nil, fmt.Errorf("ledger.topup_max: %w", err)
	}
	if cost <= 0 || minTopUp <= 0 || maxTopUp < minTopUp {
		return nil, fmt.Errorf("invalid ledger amounts: cost=%s min=%s max=%s", cost, minTopUp, maxTopUp)
	}
	return &LedgerConfig{
		ServiceCost: cost,
		TopUpMin:    minTopUp,
		TopUpMax:    maxTopUp,
		Currency:    strings.ToLower(viper.GetString("ledger.currency")),
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
