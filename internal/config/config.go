package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                 = "USERMETA"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "usermeta.db"
	defaultLogLevel           = "info"
	defaultCookieName         = "access_token"
	defaultAuthIssuer         = "workshop-auth"
	defaultPropagationTimeout = 5
	defaultPropagationWorkers = 2
	defaultPropagationQueue   = 128
)

// AppConfig captures runtime configuration for the API server. It is built
// once at startup and injected into constructors; nothing reads ambient
// process state at call time.
type AppConfig struct {
	HTTPAddress        string
	DatabasePath       string
	LogLevel           string
	AuthSigningSecret  string
	AuthIssuer         string
	AuthCookieName     string
	RemoteAuthBaseURL  string
	PropagationTimeout time.Duration
	PropagationWorkers int
	PropagationQueue   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("propagation.timeout_seconds", defaultPropagationTimeout)
	configViper.SetDefault("propagation.workers", defaultPropagationWorkers)
	configViper.SetDefault("propagation.queue_size", defaultPropagationQueue)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabasePath:       configViper.GetString("database.path"),
		LogLevel:           configViper.GetString("log.level"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:         configViper.GetString("auth.issuer"),
		AuthCookieName:     configViper.GetString("auth.cookie_name"),
		RemoteAuthBaseURL:  configViper.GetString("remote_auth.base_url"),
		PropagationTimeout: time.Duration(configViper.GetInt("propagation.timeout_seconds")) * time.Second,
		PropagationWorkers: configViper.GetInt("propagation.workers"),
		PropagationQueue:   configViper.GetInt("propagation.queue_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RemoteAuthBaseURL) == "" {
		return fmt.Errorf("remote_auth.base_url is required")
	}
	if c.PropagationTimeout <= 0 {
		return fmt.Errorf("propagation.timeout_seconds must be positive")
	}
	return nil
}
