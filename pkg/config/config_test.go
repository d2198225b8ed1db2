package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "UTC", cfg.Sessions.Timezone)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.CacheTTL)
	assert.Equal(t, UnlockStorePostgres, cfg.Unlock.Store)
	assert.Equal(t, 500, cfg.Unlock.ReasonMaxLength)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("UNLOCK_STORE", " Memory ")
	v.Set("UNLOCK_REASON_MAX_LENGTH", -1)
	v.Set("SESSION_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, UnlockStoreMemory, cfg.Unlock.Store)
	assert.Equal(t, 500, cfg.Unlock.ReasonMaxLength)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
