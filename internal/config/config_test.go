package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "OWNER_ADDRESS", "0x1234567890123456789012345678901234567890")
	setEnv(t, "GUARDIAN_ADDRESSES", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa, 0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, uint64(DefaultMaxTransferLimit), cfg.MaxTransferLimit)
	assert.Len(t, cfg.GuardianAddresses, 2)
}

func TestLoad_MissingOwner(t *testing.T) {
	setEnv(t, "OWNER_ADDRESS", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "OWNER_ADDRESS is required")
}

func TestConfig_Validate(t *testing.T) {
	owner := "0x1234567890123456789012345678901234567890"

	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				OwnerAddress:     owner,
				MaxTransferLimit: 10000,
			},
			wantErr: "",
		},
		{
			name: "missing owner",
			config: Config{
				MaxTransferLimit: 10000,
			},
			wantErr: "OWNER_ADDRESS is required",
		},
		{
			name: "malformed owner",
			config: Config{
				OwnerAddress:     "not-an-address",
				MaxTransferLimit: 10000,
			},
			wantErr: "OWNER_ADDRESS must be a valid account address",
		},
		{
			name: "malformed guardian",
			config: Config{
				OwnerAddress:      owner,
				GuardianAddresses: []string{"0xzz"},
				MaxTransferLimit:  10000,
			},
			wantErr: "GUARDIAN_ADDRESSES contains invalid address",
		},
		{
			name: "zero transfer limit",
			config: Config{
				OwnerAddress:     owner,
				MaxTransferLimit: 0,
			},
			wantErr: "MAX_TRANSFER_LIMIT must be greater than zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.Env = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestGetEnv(t *testing.T) {
	setEnv(t, "TEST_VAR", "custom_value")

	assert.Equal(t, "custom_value", getEnv("TEST_VAR", "default"))
	assert.Equal(t, "default", getEnv("NONEXISTENT_VAR", "default"))
}

func TestGetEnvInt64(t *testing.T) {
	setEnv(t, "TEST_INT", "42")
	setEnv(t, "TEST_INVALID", "not_a_number")

	assert.Equal(t, int64(42), getEnvInt64("TEST_INT", 0))
	assert.Equal(t, int64(99), getEnvInt64("NONEXISTENT_VAR", 99))
	assert.Equal(t, int64(99), getEnvInt64("TEST_INVALID", 99)) // Falls back on parse error
}

func TestGetEnvList(t *testing.T) {
	setEnv(t, "TEST_LIST", "a, b ,,c")

	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("TEST_LIST"))
	assert.Nil(t, getEnvList("NONEXISTENT_LIST"))
}
