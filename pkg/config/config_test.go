package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10*time.Minute, cfg.Certificates.CacheTTL)
	assert.Equal(t, 2, cfg.Events.Workers)
}

func TestOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ALLOWED_ORIGINS", " https://admin.example.com, ,https://ops.example.com ")
	v.Set("CERTIFICATE_SIGNED_URL_TTL", "not-a-duration")
	v.Set("RATE_LIMIT_WINDOW", "15s")
	cfg := fromViper(v)

	assert.Equal(t, []string{"https://admin.example.com", "https://ops.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Certificates.SignedURLTTL)
	assert.Equal(t, 15*time.Second, cfg.RateLimit.Window)
}
