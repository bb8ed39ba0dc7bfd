package config

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		cfg, err := LoadWith(envconfig.MapLookuper(map[string]string{}))
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.ServerAddress)
		assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
		assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
		assert.Equal(t, "firebase", cfg.Auth.Mode)
		assert.Equal(t, 24*time.Hour, cfg.Auth.JWTExpiration)
		assert.Equal(t, "memory", cfg.Store.Backend)
		assert.Equal(t, "eventsphere", cfg.Store.MongoDB)
		assert.Equal(t, 3, cfg.AutoBanReportThreshold)
		assert.True(t, cfg.NeedsFirebase())
	})

	t.Run("Should read overrides", func(t *testing.T) {
		cfg, err := LoadWith(envconfig.MapLookuper(map[string]string{
			"AUTH_MODE":                 "JWT",
			"STORE_BACKEND":             "mongo",
			"MONGO_URI":                 "mongodb://localhost:27017",
			"ADMIN_EMAILS":              "a@example.com,b@example.com",
			"AUTO_BAN_REPORT_THRESHOLD": "5",
		}))
		require.NoError(t, err)

		assert.Equal(t, "jwt", cfg.Auth.Mode)
		assert.Equal(t, "mongo", cfg.Store.Backend)
		assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AdminEmails)
		assert.Equal(t, 5, cfg.AutoBanReportThreshold)
		assert.False(t, cfg.NeedsFirebase())
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		cases := map[string]map[string]string{
			"auth mode":      {"AUTH_MODE": "basic"},
			"store backend":  {"STORE_BACKEND": "postgres"},
			"mongo uri":      {"STORE_BACKEND": "mongo"},
			"zero threshold": {"AUTO_BAN_REPORT_THRESHOLD": "0"},
		}
		for name, env := range cases {
			_, err := LoadWith(envconfig.MapLookuper(env))
			assert.Error(t, err, name)
		}
	})
}
