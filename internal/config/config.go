package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	AuthSecret     string        `mapstructure:"AUTH_SECRET"`
	KBSource       string        `mapstructure:"KB_SOURCE"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	ChainCacheTTL  time.Duration `mapstructure:"CHAIN_CACHE_TTL"`
	TLSEnabled     bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string        `mapstructure:"TLS_KEY_FILE"`

	// Matcher tuning. Defaults match the documented scoring model; override
	// only when re-calibrating against a changed knowledge base.
	ScoreRedFlagWeight    float64 `mapstructure:"SCORE_RED_FLAG_WEIGHT"`
	ScoreMaxCandidates    int     `mapstructure:"SCORE_MAX_CANDIDATES"`
	ConfidenceRedFlagStep float64 `mapstructure:"CONFIDENCE_RED_FLAG_STEP"`
	ConfidenceRedFlagCap  float64 `mapstructure:"CONFIDENCE_RED_FLAG_CAP"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // auto-detect: "" -> inferred from ENV
	v.SetDefault("KB_SOURCE", "embedded:")
	v.SetDefault("DB_MAX_CONNS", 8)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CHAIN_CACHE_TTL", "10m")
	v.SetDefault("SCORE_RED_FLAG_WEIGHT", 2.0)
	v.SetDefault("SCORE_MAX_CANDIDATES", 5)
	v.SetDefault("CONFIDENCE_RED_FLAG_STEP", 0.1)
	v.SetDefault("CONFIDENCE_RED_FLAG_CAP", 0.3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("KB_SOURCE")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("CHAIN_CACHE_TTL")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")
	v.BindEnv("SCORE_RED_FLAG_WEIGHT")
	v.BindEnv("SCORE_MAX_CANDIDATES")
	v.BindEnv("CONFIDENCE_RED_FLAG_STEP")
	v.BindEnv("CONFIDENCE_RED_FLAG_CAP")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns the effective auth mode. If AUTH_MODE is explicitly
// set, it is returned. Otherwise, the mode is inferred:
//   - ENV=development → "development" (no auth, all requests get admin)
//   - Otherwise       → "token" (HMAC-signed bearer tokens)
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return "development"
	}
	return "token"
}

// Validate checks that the configuration is safe to run. In token mode
// AUTH_SECRET must be set so that real JWT authentication is enforced.
func (c *Config) Validate() error {
	mode := c.ResolvedAuthMode()
	if mode != "development" && mode != "token" {
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"token\", got %q", mode)
	}
	if mode == "token" {
		if c.AuthSecret == "" {
			return fmt.Errorf(
				"AUTH_SECRET must be set when AUTH_MODE is \"token\" (current ENV=%q). "+
					"Refusing to start without authentication configuration", c.Env)
		}
		if len(c.AuthSecret) < 32 {
			return fmt.Errorf("AUTH_SECRET must be at least 32 characters, got %d", len(c.AuthSecret))
		}
	}

	switch {
	case c.KBSource == "":
		return fmt.Errorf("KB_SOURCE must not be empty")
	case c.KBSource == "embedded:",
		strings.HasPrefix(c.KBSource, "file:"),
		strings.HasPrefix(c.KBSource, "postgres://"),
		strings.HasPrefix(c.KBSource, "postgresql://"):
		// ok
	default:
		return fmt.Errorf("KB_SOURCE must be \"embedded:\", \"file:<path>\" or a postgres URL, got %q", c.KBSource)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.ChainCacheTTL <= 0 {
		return fmt.Errorf("CHAIN_CACHE_TTL must be a positive duration")
	}

	if c.ScoreRedFlagWeight <= 0 || c.ScoreMaxCandidates <= 0 {
		return fmt.Errorf("SCORE_RED_FLAG_WEIGHT and SCORE_MAX_CANDIDATES must be positive")
	}
	if c.ConfidenceRedFlagStep <= 0 || c.ConfidenceRedFlagCap <= 0 {
		return fmt.Errorf("CONFIDENCE_RED_FLAG_STEP and CONFIDENCE_RED_FLAG_CAP must be positive")
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
