package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type (
	Config struct {
		ServerAddress  string        `env:"SERVER_ADDRESS,default=:8080"`
		RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=20s"`
		AllowedOrigins []string      `env:"ALLOWED_ORIGINS,default=*"`
		LogLevel       string        `env:"LOG_LEVEL,default=info"`

		Auth     Auth
		Store    Store
		Firebase Firebase

		AdminEmails            []string `env:"ADMIN_EMAILS"`
		AutoBanReportThreshold int      `env:"AUTO_BAN_REPORT_THRESHOLD,default=3"`
	}

	Auth struct {
		// Mode is "firebase" (verify Firebase ID tokens) or "jwt" (tokens
		// issued by /api/auth/login for operator accounts).
		Mode                 string        `env:"AUTH_MODE,default=firebase"`
		JWTSecret            string        `env:"JWT_SECRET,default=your-secret-key-change-in-production"`
		JWTExpiration        time.Duration `env:"JWT_EXPIRATION,default=24h"`
		OperatorEmail        string        `env:"OPERATOR_EMAIL"`
		OperatorPasswordHash string        `env:"OPERATOR_PASSWORD_HASH"`
	}

	Store struct {
		Backend  string `env:"STORE_BACKEND,default=memory"`
		DataDir  string `env:"DATA_DIR,default=./data"`
		MongoURI string `env:"MONGO_URI"`
		MongoDB  string `env:"MONGO_DB,default=eventsphere"`
	}

	Firebase struct {
		ProjectID       string `env:"FIREBASE_PROJECT_ID"`
		CredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON"`
	}
)

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return LoadWith(envconfig.OsLookuper())
}

// LoadWith reads the configuration through lookuper.
func LoadWith(lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	switch c.Auth.Mode {
	case "firebase", "jwt":
	default:
		return fmt.Errorf("invalid AUTH_MODE %q", c.Auth.Mode)
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "memory", "firestore":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.Store.Backend)
	}

	if c.AutoBanReportThreshold < 1 {
		return fmt.Errorf("AUTO_BAN_REPORT_THRESHOLD must be at least 1, got %d", c.AutoBanReportThreshold)
	}
	return nil
}

// NeedsFirebase reports whether a Firebase app must be initialised.
func (c *Config) NeedsFirebase() bool {
	return c.Auth.Mode == "firebase" || c.Store.Backend == "firestore"
}
