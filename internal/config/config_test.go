package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":5000", cfg.Server.ListenAddr)
	assert.Equal(t, "server_storage", cfg.Server.StorageDir)
	assert.Equal(t, "version_history", cfg.Server.VersionDir)
	assert.Equal(t, "client_downloads", cfg.Client.DownloadDir)
	assert.Equal(t, 4096, cfg.Client.ChunkSize)
	assert.Equal(t, 3, cfg.Client.MaxRetries)
}

func TestLoadUsesDefaultsAndOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("server.listen_addr", ":9999")
	viper.Set("client.chunk_size", 8192)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, 8192, cfg.Client.ChunkSize)

	// Untouched keys fall back to the defaults.
	assert.Equal(t, "server_storage", cfg.Server.StorageDir)
	assert.Equal(t, 30*time.Second, cfg.Client.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.Client.RetryBackoff)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }, ErrInvalidListenAddr},
		{"empty storage dir", func(c *Config) { c.Server.StorageDir = "" }, ErrInvalidStorageDir},
		{"empty version dir", func(c *Config) { c.Server.VersionDir = "" }, ErrInvalidVersionDir},
		{"empty server addr", func(c *Config) { c.Client.ServerAddr = "" }, ErrInvalidServerAddr},
		{"zero chunk size", func(c *Config) { c.Client.ChunkSize = 0 }, ErrInvalidChunkSize},
		{"negative chunk size", func(c *Config) { c.Client.ChunkSize = -1 }, ErrInvalidChunkSize},
		{"zero idle timeout", func(c *Config) { c.Server.IdleTimeout = 0 }, ErrInvalidTimeout},
		{"zero op timeout", func(c *Config) { c.Client.OpTimeout = 0 }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.Client.MaxRetries = -1 }, ErrInvalidRetries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}

	t.Run("zero retries is valid", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Client.MaxRetries = 0
		assert.NoError(t, cfg.Validate())
	})
}
