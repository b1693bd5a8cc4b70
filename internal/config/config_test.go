package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("VERIFY_TOKEN", "secret-token")

	cfg, _ := LoadConfig()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "secret-token", cfg.VerifyToken)
	assert.Equal(t, "https://graph.facebook.com", cfg.GraphAPIURL)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
}

func TestGetDuration(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	assert.Equal(t, 3*time.Second, getDuration("PROVIDER_TIMEOUT", time.Minute))

	t.Setenv("PROVIDER_TIMEOUT", "soon")
	assert.Equal(t, time.Minute, getDuration("PROVIDER_TIMEOUT", time.Minute))

	t.Setenv("PROVIDER_TIMEOUT", "-1s")
	assert.Equal(t, time.Minute, getDuration("PROVIDER_TIMEOUT", time.Minute))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestEmptyCORSOriginsFallsBackToDefaults(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " , ")
	cfg, _ := LoadConfig()
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)

	t.Setenv("CORS_ORIGINS", "https://crm.example.com")
	cfg, _ = LoadConfig()
	assert.Equal(t, []string{"https://crm.example.com"}, cfg.CORSOrigins)
}
