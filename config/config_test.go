package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIREBASE_CREDENTIALS_PATH", "/tmp/creds.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendFirestore, cfg.Store.Backend)
	assert.Equal(t, AuthModeFirebase, cfg.App.AuthMode)
	assert.Equal(t, "0 3 * * *", cfg.Audit.Schedule)
	assert.True(t, cfg.NeedsFirebase())
}

func TestLoad_RedisWithHeaderAuth(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("AUTH_MODE", "header")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("AUDIT_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.NeedsFirebase())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo", "AUTH_MODE": "header"}},
		{"firestore needs credentials", map[string]string{"AUTH_MODE": "header"}},
		{"firebase auth needs credentials", map[string]string{"STORE_BACKEND": "redis"}},
		{"header auth not in production", map[string]string{"STORE_BACKEND": "redis", "AUTH_MODE": "header", "APP_ENV": "production"}},
		{"unknown auth mode", map[string]string{"STORE_BACKEND": "redis", "AUTH_MODE": "basic"}},
		{"rate limit must be positive", map[string]string{"STORE_BACKEND": "redis", "AUTH_MODE": "header", "FRIEND_REQUESTS_BURST": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FIREBASE_CREDENTIALS_PATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadForTools(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("FIREBASE_CREDENTIALS_PATH", "")

	_, err := Load()
	assert.Error(t, err, "the server needs firebase auth")

	cfg, err := LoadForTools()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
}
