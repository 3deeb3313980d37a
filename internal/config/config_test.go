package config

import (
	"testing"
	"time"

	"github.com/roryk/backend/internal/models"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		viper.Set("jwt.secret_key", "secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, models.Money(100), cfg.Ledger.ServiceCost)
		assert.Equal(t, models.Money(500), cfg.Ledger.TopUpMin)
		assert.Equal(t, models.Money(50000), cfg.Ledger.TopUpMax)
		assert.Equal(t, "eur", cfg.Ledger.Currency)
		assert.Equal(t, time.Hour, cfg.Password.ResetTTL)
		assert.Equal(t, 3, cfg.Password.MaxResetRequests)
		assert.Equal(t, 5, cfg.RateLimit.ResetPassword)
		assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
		assert.False(t, cfg.Server.TrustProxy)
		assert.False(t, cfg.SMTP.Configured())
	})

	t.Run("environment overrides", func(t *testing.T) {
		viper.Reset()
		BindEnv()
		t.Setenv("JWT_SECRET_KEY", "secret")
		t.Setenv("LEDGER_SERVICE_COST", "2.50")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
		t.Setenv("TRUST_PROXY", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, models.Money(250), cfg.Ledger.ServiceCost)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
		assert.True(t, cfg.Server.TrustProxy)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		viper.Reset()
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad service cost", func(t *testing.T) {
		viper.Reset()
		viper.Set("jwt.secret_key", "secret")
		viper.Set("ledger.service_cost", "1.005")
		_, err := Load()
		assert.Error(t, err)
	})
}
