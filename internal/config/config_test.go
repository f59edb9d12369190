package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal time.Duration
		expected   time.Duration
	}{
		{"parses go duration", "TEST_DUR_1", "90s", time.Minute, 90 * time.Second},
		{"parses bare seconds", "TEST_DUR_2", "25", time.Minute, 25 * time.Second},
		{"uses default for empty", "TEST_DUR_3", "", time.Minute, time.Minute},
		{"uses default for garbage", "TEST_DUR_4", "soon", time.Minute, time.Minute},
		{"uses default for negative", "TEST_DUR_5", "-5m", time.Minute, time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			assert.Equal(t, tc.expected, getEnvAsDurationOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/lms")
	os.Setenv("REDIS_URL", "redis://localhost:6379/0")
	os.Setenv("JWT_SECRET", "test-secret")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("JWT_SECRET")
	}()

	cfg := Load()

	assert.Equal(t, 25*time.Second, cfg.WSPingInterval)
	assert.Equal(t, 60*time.Second, cfg.WSPongTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ReconnectGracePeriod)
	assert.Equal(t, time.Minute, cfg.GraceSweepInterval)
	assert.Equal(t, 25, cfg.DBMaxConns)
	assert.Equal(t, "smtp", cfg.EmailProvider)
}

func TestMustGetEnv_Panics(t *testing.T) {
	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	assert.Panics(t, func() { mustGetEnv("NONEXISTENT_REQUIRED_VAR") })
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	assert.Equal(t, "value123", mustGetEnv("TEST_REQUIRED"))
}
