package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/datallboy/gonntp/internal/nntp"
)

type Config struct {
	Servers []ServerConfig `mapstructure:"servers" yaml:"servers"`
	Buffers BufferConfig   `mapstructure:"buffers" yaml:"buffers"`
	Log     LogConfig      `mapstructure:"log" yaml:"log"`
	Store   StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type ServerConfig struct {
	ID            string `mapstructure:"id" yaml:"id"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	MaxConnection int    `mapstructure:"max_connections" yaml:"max_connections"`
	Priority      int    `mapstructure:"priority" yaml:"priority"`

	// ModeReader sends MODE READER after the greeting.
	ModeReader  bool          `mapstructure:"mode_reader" yaml:"mode_reader"`
	Compression string        `mapstructure:"compression" yaml:"compression"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

type BufferConfig struct {
	StatusSize int `mapstructure:"status_size" yaml:"status_size"`
	DataSize   int `mapstructure:"data_size" yaml:"data_size"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Addr is the host:port to dial.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ConnConfig maps the server entry onto the connection engine settings.
func (s ServerConfig) ConnConfig(b BufferConfig) nntp.ConnConfig {
	cfg := nntp.ConnConfig{
		ReadTimeout:   s.ReadTimeout,
		WriteTimeout:  s.ReadTimeout,
		DialTimeout:   s.DialTimeout,
		StatusBufSize: b.StatusSize,
		DataBufSize:   b.DataSize,
	}
	// validate has already rejected unknown modes
	cfg.Compression, _ = nntp.ParseCompression(s.Compression)
	if s.TLS {
		cfg.TLS = &nntp.TLSConfig{ServerName: s.Host}
	}
	return cfg
}

func Load(path string) (*Config, error) {

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Docker images mount their config under /config
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else if _, errEx := os.Stat("config.yaml.example"); errEx == nil {
				return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
					"To fix this, run:\n" +
					"  cp config.yaml.example config.yaml\n" +
					"Then edit it with your Usenet credentials.")
			} else {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("buffers.status_size", nntp.DefaultStatusBufSize)
	v.SetDefault("buffers.data_size", nntp.DefaultDataBufSize)
	v.SetDefault("log.path", "gonntp.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "gonntp.db")

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// GONNTP_LOG_LEVEL overrides log.level and so on
	v.SetEnvPrefix("GONNTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return errors.New("at least one server must be configured")
	}

	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("server[%d] requires a unique ID", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("server %s: duplicate ID", s.ID)
		}
		seen[s.ID] = true

		if s.Host == "" {
			return fmt.Errorf("server %s: host is required", s.ID)
		}

		if s.Port == 0 {
			if s.TLS {
				c.Servers[i].Port = 563
			} else {
				c.Servers[i].Port = 119
			}
		}

		if _, err := nntp.ParseCompression(s.Compression); err != nil {
			return fmt.Errorf("server %s: %w", s.ID, err)
		}

		if s.MaxConnection <= 0 {
			c.Servers[i].MaxConnection = 10
		}

		if s.Priority == 0 {
			c.Servers[i].Priority = 1
		}

		if s.DialTimeout <= 0 {
			c.Servers[i].DialTimeout = 10 * time.Second
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store: unsupported driver %q", c.Store.Driver)
	}

	return nil
}

// Server returns the server entry with the given ID.
func (c *Config) Server(id string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s, true
		}
	}
	return ServerConfig{}, false
}
