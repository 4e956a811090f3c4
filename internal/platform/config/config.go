package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SMTPSecurityImplicit = "implicit"
	SMTPSecurityStartTLS = "starttls"
	SMTPSecurityNone     = "none"

	LayoutTwoColumn = "two-column"
	LayoutSingle    = "single"
)

type Config struct {
	Addr               string
	Environment        string
	LogLevel           string
	LogFormat          string
	JWTSecret          string
	AdminUsername      string
	AdminPassword      string
	AdminPasswordHash  string
	SessionTTL         time.Duration
	MaxUploadBytes     int64
	RateLimitPerMinute int
	MetricsEnabled     bool
	SMTPHost           string
	SMTPPort           int
	SMTPSecurity       string
	SMTPTimeout        time.Duration
	SMTPSendRate       float64
	Org                Organization
	PayCurrency        string
	PayType            string
	PayslipLayout      string
	EmailIncludePIN    bool
	BatchSummaryEmail  bool
	WorkbookTTL        time.Duration
	JobRetention       time.Duration
	JobQueueSize       int
	SweepInterval      time.Duration
}

// Organization is the issuer printed on every payslip and named in every email.
type Organization struct {
	Name         string
	Address      string
	Phone        string
	Email        string
	SupportEmail string
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AdminUsername:      strings.TrimSpace(getEnv("ADMIN_USERNAME", "")),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionTTL:         getEnvDuration("SESSION_TTL", 8*time.Hour),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		SMTPHost:           getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:           getEnvInt("SMTP_PORT", 465),
		SMTPSecurity:       strings.ToLower(getEnv("SMTP_SECURITY", SMTPSecurityImplicit)),
		SMTPTimeout:        getEnvDuration("SMTP_TIMEOUT", 30*time.Second),
		SMTPSendRate:       getEnvFloat("SMTP_SEND_RATE", 0),
		Org: Organization{
			Name:         getEnv("ORG_NAME", "ENA COACH LTD"),
			Address:      getEnv("ORG_ADDRESS", "KPCU, Nairobi Kenya"),
			Phone:        getEnv("ORG_PHONE", "+254 709 832 000"),
			Email:        getEnv("ORG_EMAIL", "info@enacoach.co.ke"),
			SupportEmail: getEnv("ORG_SUPPORT_EMAIL", "hr@enacoach.co.ke"),
		},
		PayCurrency:       getEnv("PAY_CURRENCY", "KES"),
		PayType:           getEnv("PAY_TYPE", "Bank Transfer"),
		PayslipLayout:     strings.ToLower(getEnv("PAYSLIP_LAYOUT", LayoutTwoColumn)),
		EmailIncludePIN:   getEnvBool("EMAIL_INCLUDE_PIN", false),
		BatchSummaryEmail: getEnvBool("BATCH_SUMMARY_EMAIL", true),
		WorkbookTTL:       getEnvDuration("WORKBOOK_TTL", 2*time.Hour),
		JobRetention:      getEnvDuration("JOB_RETENTION", 24*time.Hour),
		JobQueueSize:      getEnvInt("JOB_QUEUE_SIZE", 16),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AdminUsername) == "" {
		return fmt.Errorf("ADMIN_USERNAME is required")
	}
	if c.AdminPassword == "" && strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT %d is out of range", c.SMTPPort)
	}
	switch c.SMTPSecurity {
	case SMTPSecurityImplicit, SMTPSecurityStartTLS, SMTPSecurityNone:
	default:
		return fmt.Errorf("SMTP_SECURITY must be one of implicit, starttls, none")
	}
	if c.SMTPTimeout <= 0 {
		return fmt.Errorf("SMTP_TIMEOUT must be positive")
	}
	if c.SMTPSendRate < 0 {
		return fmt.Errorf("SMTP_SEND_RATE must not be negative")
	}
	switch c.PayslipLayout {
	case LayoutTwoColumn, LayoutSingle:
	default:
		return fmt.Errorf("PAYSLIP_LAYOUT must be one of two-column, single")
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.JobQueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive")
	}
	return nil
}
