package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrInvalidListenAddr = errors.New("server listen address must be set")
	ErrInvalidStorageDir = errors.New("storage directory must be set")
	ErrInvalidVersionDir = errors.New("version directory name must be set")
	ErrInvalidServerAddr = errors.New("client server address must be set")
	ErrInvalidChunkSize  = errors.New("chunk size must be greater than 0")
	ErrInvalidTimeout    = errors.New("timeouts must be greater than 0")
	ErrInvalidRetries    = errors.New("max retries must not be negative")
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig `json:"server"`
	Client ClientConfig `json:"client"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	ListenAddr  string        `json:"listen_addr"`
	StorageDir  string        `json:"storage_dir"`
	VersionDir  string        `json:"version_dir"`  // Subdirectory of StorageDir holding archived revisions
	IdleTimeout time.Duration `json:"idle_timeout"` // Read deadline applied per command and per payload chunk
}

// ClientConfig holds client-specific configuration
type ClientConfig struct {
	ServerAddr     string        `json:"server_addr"`
	DownloadDir    string        `json:"download_dir"`
	ChunkSize      int           `json:"chunk_size"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	OpTimeout      time.Duration `json:"op_timeout"` // Deadline for one request/response exchange or payload chunk
	MaxRetries     int           `json:"max_retries"`
	RetryBackoff   time.Duration `json:"retry_backoff"` // Initial backoff, doubled per attempt
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":5000",
			StorageDir:  "server_storage",
			VersionDir:  "version_history",
			IdleTimeout: 5 * time.Minute,
		},
		Client: ClientConfig{
			ServerAddr:     "localhost:5000",
			DownloadDir:    "client_downloads",
			ChunkSize:      4096,
			ConnectTimeout: 30 * time.Second,
			OpTimeout:      5 * time.Minute,
			MaxRetries:     3,
			RetryBackoff:   time.Second,
		},
	}
}

// Load builds a configuration from viper, falling back to the defaults for
// any key the config file or environment does not set.
func Load() *Config {
	def := NewDefaultConfig()

	viper.SetDefault("server.listen_addr", def.Server.ListenAddr)
	viper.SetDefault("server.storage_dir", def.Server.StorageDir)
	viper.SetDefault("server.version_dir", def.Server.VersionDir)
	viper.SetDefault("server.idle_timeout", def.Server.IdleTimeout)
	viper.SetDefault("client.server_addr", def.Client.ServerAddr)
	viper.SetDefault("client.download_dir", def.Client.DownloadDir)
	viper.SetDefault("client.chunk_size", def.Client.ChunkSize)
	viper.SetDefault("client.connect_timeout", def.Client.ConnectTimeout)
	viper.SetDefault("client.op_timeout", def.Client.OpTimeout)
	viper.SetDefault("client.max_retries", def.Client.MaxRetries)
	viper.SetDefault("client.retry_backoff", def.Client.RetryBackoff)

	return &Config{
		Server: ServerConfig{
			ListenAddr:  viper.GetString("server.listen_addr"),
			StorageDir:  viper.GetString("server.storage_dir"),
			VersionDir:  viper.GetString("server.version_dir"),
			IdleTimeout: viper.GetDuration("server.idle_timeout"),
		},
		Client: ClientConfig{
			ServerAddr:     viper.GetString("client.server_addr"),
			DownloadDir:    viper.GetString("client.download_dir"),
			ChunkSize:      viper.GetInt("client.chunk_size"),
			ConnectTimeout: viper.GetDuration("client.connect_timeout"),
			OpTimeout:      viper.GetDuration("client.op_timeout"),
			MaxRetries:     viper.GetInt("client.max_retries"),
			RetryBackoff:   viper.GetDuration("client.retry_backoff"),
		},
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if c.Server.StorageDir == "" {
		return ErrInvalidStorageDir
	}
	if c.Server.VersionDir == "" {
		return ErrInvalidVersionDir
	}
	if c.Client.ServerAddr == "" {
		return ErrInvalidServerAddr
	}
	if c.Client.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Server.IdleTimeout <= 0 || c.Client.ConnectTimeout <= 0 || c.Client.OpTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Client.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	return nil
}
