// Package config loads relay configuration from the environment and an
// optional YAML file via viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of options spec'd for the relay.
type Config struct {
	HTTPPort string `mapstructure:"http_port"`

	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`

	AccessTTLSec  int `mapstructure:"access_ttl_sec"`
	RefreshTTLSec int `mapstructure:"refresh_ttl_sec"`

	PairingTTLSec      int `mapstructure:"pairing_ttl_sec"`
	PairingMaxAttempts int `mapstructure:"pairing_max_attempts"`
	PairingRatePerHour int `mapstructure:"pairing_rate_per_hour"`

	MsgMaxBytes     int `mapstructure:"msg_max_bytes"`
	OfflineQueueMax int `mapstructure:"offline_queue_max"`
	OfflineTTLSec   int `mapstructure:"offline_ttl_sec"`
	IdleTimeoutSec  int `mapstructure:"idle_timeout_sec"`

	AllowLegacyGlobalAgentSecret bool   `mapstructure:"allow_legacy_global_agent_secret"`
	LegacyGlobalAgentSecret      string `mapstructure:"legacy_global_agent_secret"`

	FreeAgentLimit int `mapstructure:"free_agent_limit"`

	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	StripePriceID       string `mapstructure:"stripe_price_id"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	DBDriver string `mapstructure:"db_driver"`
	DBPath   string `mapstructure:"db_path"`
}

// AccessTTL and friends convert the second-granularity config fields into
// time.Duration at the call sites that need them.
func (c Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTTLSec) * time.Second }
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLSec) * time.Second }
func (c Config) PairingTTL() time.Duration { return time.Duration(c.PairingTTLSec) * time.Second }
func (c Config) OfflineTTL() time.Duration { return time.Duration(c.OfflineTTLSec) * time.Second }
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// Loader wraps viper configuration loading for the relay, mirroring the
// env-prefix-plus-optional-file pattern used elsewhere in the pack.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader builds a Loader with env-prefix "RELAY" and defaults applied.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/relay")

	setDefaults(v)
	return &Loader{v: v}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "agentrelay")
	v.SetDefault("access_ttl_sec", 900)
	v.SetDefault("refresh_ttl_sec", 2592000)
	v.SetDefault("pairing_ttl_sec", 600)
	v.SetDefault("pairing_max_attempts", 5)
	v.SetDefault("pairing_rate_per_hour", 5)
	v.SetDefault("msg_max_bytes", 32768)
	v.SetDefault("offline_queue_max", 10)
	v.SetDefault("offline_ttl_sec", 60)
	v.SetDefault("idle_timeout_sec", 300)
	v.SetDefault("allow_legacy_global_agent_secret", false)
	v.SetDefault("legacy_global_agent_secret", "")
	v.SetDefault("free_agent_limit", 1)
	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("stripe_webhook_secret", "")
	v.SetDefault("stripe_price_id", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "relay.db")
}

// Viper exposes the underlying instance for cobra flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

// SetConfigFile pins an explicit config file path, overriding search paths.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = strings.TrimSpace(path)
}

// ReadInConfig reads the config file if one is found; a missing file is
// not an error since every option has an env-var or default fallback.
func (l *Loader) ReadInConfig() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the config file (if any) and unmarshals the full Config.
func (l *Loader) Load() (Config, error) {
	if err := l.ReadInConfig(); err != nil {
		return Config{}, err
	}
	return LoadFromViper(l.v)
}

// LoadFromViper unmarshals a Config from an already-configured viper
// instance, letting tests feed an in-memory viper.Viper directly.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
