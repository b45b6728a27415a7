package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBConn   string
	LogLevel string

	JWTSecret     string
	CronSecret    string
	PartnerSecret string

	ScoringURL           string
	ScoringTimeout       time.Duration
	DefaultIncomeBarrier float64
	IncomeBarrierTTL     time.Duration

	// IncomeBarrierTimeout bounds a live barrier fetch; IncomeBarrierRetryAfter
	// is how long the fallback is served before the scorer is asked again.
	IncomeBarrierTimeout    time.Duration
	IncomeBarrierRetryAfter time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RescoreSchedule     string
	RescoreWorkers      int
	RescoreBatchTimeout time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	Policy Policy
}

// Policy holds the decision thresholds applied on top of the scorer result.
type Policy struct {
	HighConfidenceProbability float64
	HighConfidenceComposite   float64
	HighConfidenceMaxLTI      float64
	AutoApproveMinIndex       float64
	LowestRiskBand            string
	// TrustedBorrowers lists user ids treated as high-confidence regardless of the scorer thresholds.
	TrustedBorrowers map[int64]bool
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		HighConfidenceProbability: 0.82,
		HighConfidenceComposite:   60,
		HighConfidenceMaxLTI:      0.6,
		AutoApproveMinIndex:       80,
		LowestRiskBand:            "Very Low",
		TrustedBorrowers:          map[int64]bool{},
	}
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	def := DefaultPolicy()
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		DBConn:   getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=loans sslmode=disable"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		JWTSecret:     getEnv("JWT_SECRET", "secret"),
		CronSecret:    getEnv("CRON_SECRET", ""),
		PartnerSecret: getEnv("PARTNER_SECRET", ""),

		ScoringURL:       getEnv("SCORING_URL", "http://localhost:8000"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RescoreSchedule:  getEnv("RESCORE_SCHEDULE", "@every 1h"),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnv("SMTP_PORT", "587"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		SenderEmail:      getEnv("SENDER_EMAIL", "no-reply@loans.local"),
		IncomeBarrierTTL: 10 * time.Minute,
		ScoringTimeout:   30 * time.Second,
		RescoreWorkers:   4,

		IncomeBarrierTimeout:    2 * time.Second,
		IncomeBarrierRetryAfter: 30 * time.Second,
		RescoreBatchTimeout:     60 * time.Second,
	}

	var err error
	if cfg.ScoringTimeout, err = getEnvDuration("SCORING_TIMEOUT", cfg.ScoringTimeout); err != nil {
		return nil, err
	}
	if cfg.IncomeBarrierTTL, err = getEnvDuration("INCOME_BARRIER_TTL", cfg.IncomeBarrierTTL); err != nil {
		return nil, err
	}
	if cfg.IncomeBarrierTimeout, err = getEnvDuration("INCOME_BARRIER_TIMEOUT", cfg.IncomeBarrierTimeout); err != nil {
		return nil, err
	}
	if cfg.IncomeBarrierRetryAfter, err = getEnvDuration("INCOME_BARRIER_RETRY_AFTER", cfg.IncomeBarrierRetryAfter); err != nil {
		return nil, err
	}
	if cfg.RescoreBatchTimeout, err = getEnvDuration("RESCORE_BATCH_TIMEOUT", cfg.RescoreBatchTimeout); err != nil {
		return nil, err
	}
	if cfg.DefaultIncomeBarrier, err = getEnvFloat("DEFAULT_INCOME_BARRIER", 15000); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RescoreWorkers, err = getEnvInt("RESCORE_WORKERS", cfg.RescoreWorkers); err != nil {
		return nil, err
	}

	cfg.Policy = def
	if cfg.Policy.HighConfidenceProbability, err = getEnvFloat("HIGH_CONFIDENCE_PROBABILITY", def.HighConfidenceProbability); err != nil {
		return nil, err
	}
	if cfg.Policy.HighConfidenceComposite, err = getEnvFloat("HIGH_CONFIDENCE_COMPOSITE", def.HighConfidenceComposite); err != nil {
		return nil, err
	}
	if cfg.Policy.HighConfidenceMaxLTI, err = getEnvFloat("HIGH_CONFIDENCE_MAX_LTI", def.HighConfidenceMaxLTI); err != nil {
		return nil, err
	}
	if cfg.Policy.AutoApproveMinIndex, err = getEnvFloat("AUTO_APPROVE_MIN_INDEX", def.AutoApproveMinIndex); err != nil {
		return nil, err
	}
	cfg.Policy.LowestRiskBand = getEnv("LOWEST_RISK_BAND", def.LowestRiskBand)
	if cfg.Policy.TrustedBorrowers, err = parseIDSet(getEnv("TRUSTED_BORROWER_IDS", "")); err != nil {
		return nil, err
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ScoringURL == "" {
		return nil, fmt.Errorf("SCORING_URL is required")
	}
	if cfg.RescoreWorkers < 1 {
		return nil, fmt.Errorf("RESCORE_WORKERS must be at least 1")
	}

	return cfg, nil
}

// WriteTimeout is the HTTP write deadline. It covers the slowest request
// path: one barrier fetch plus one scorer call on submission, or a whole
// interactive rescore batch.
func (c *Config) WriteTimeout() time.Duration {
	worst := c.IncomeBarrierTimeout + c.ScoringTimeout
	if c.RescoreBatchTimeout > worst {
		worst = c.RescoreBatchTimeout
	}
	return worst + 10*time.Second
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseIDSet(raw string) (map[int64]bool, error) {
	ids := map[int64]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_BORROWER_IDS entry %q: %w", part, err)
		}
		ids[id] = true
	}
	return ids, nil
}
