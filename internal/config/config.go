package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"nowplaying/internal/common"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	Lan             bool          `mapstructure:"LAN"`
	Debug           bool          `mapstructure:"DEBUG"`
	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxAttempts     int           `mapstructure:"MAX_ATTEMPTS"`
	SpotifyId       string        `mapstructure:"SPOTIFY_ID"`
	SpotifySecret   string        `mapstructure:"SPOTIFY_SECRET"`
	CredentialsFile string        `mapstructure:"CREDENTIALS_FILE"`
	RedirectURI     string        `mapstructure:"REDIRECT_URI"`
	RedisHost       string        `mapstructure:"REDIS_HOST"`
	RedisPort       string        `mapstructure:"REDIS_PORT"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDatabase   int           `mapstructure:"REDIS_DATABASE"`
}

// LoadConfig reads app.env from path and the environment. A missing app.env
// is not an error: defaults and environment variables still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Default values
	v.SetDefault("PORT", "5000")
	v.SetDefault("LAN", false)
	v.SetDefault("DEBUG", true)
	v.SetDefault("POLL_INTERVAL", 500*time.Millisecond)
	v.SetDefault("REQUEST_TIMEOUT", 10*time.Second)
	v.SetDefault("MAX_ATTEMPTS", 5)
	v.SetDefault("SPOTIFY_ID", "")
	v.SetDefault("SPOTIFY_SECRET", "")
	v.SetDefault("CREDENTIALS_FILE", "spotify_secret.txt")
	v.SetDefault("REDIRECT_URI", "http://localhost:5000/callback")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DATABASE", 0)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// Addr is the address the web server listens on. Only loopback is used
// unless the page is shared on the local network.
func (c *Config) Addr() string {
	host := "127.0.0.1"
	if c.Lan {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, c.Port)
}

func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, c.RedisPort)
}

// LoadCredentials fills in the Spotify client id and secret from
// CredentialsFile when they were not given in app.env or the environment.
// The file holds the client id on its first line and the secret on its second.
func (c *Config) LoadCredentials() error {
	if c.SpotifyId != "" && c.SpotifySecret != "" {
		return nil
	}
	if c.CredentialsFile == "" {
		return common.ErrMissingCredentials
	}

	data, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrMissingCredentials, err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 {
		return fmt.Errorf("%w: %s needs the client id and secret on two lines", common.ErrMissingCredentials, c.CredentialsFile)
	}

	id, secret := strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1])
	if id == "" || secret == "" {
		return fmt.Errorf("%w: %s has an empty client id or secret", common.ErrMissingCredentials, c.CredentialsFile)
	}

	c.SpotifyId, c.SpotifySecret = id, secret
	return nil
}
