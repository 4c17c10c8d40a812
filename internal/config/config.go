// Package config loads and validates gateway configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Captcha   CaptchaConfig   `mapstructure:"captcha"`
	Slot      SlotConfig      `mapstructure:"slot"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Combine   CombineConfig   `mapstructure:"combine"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Usage     UsageConfig     `mapstructure:"usage"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles for the inbound surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ProviderConfig describes the upstream generation provider.
type ProviderConfig struct {
	Origin         string `mapstructure:"origin"`
	Referer        string `mapstructure:"referer"`
	ClientHeader   string `mapstructure:"client_header"`
	ClientID       string `mapstructure:"client_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// EndpointsConfig holds the gateway endpoint pool and routing knobs.
type EndpointsConfig struct {
	Mode          string   `mapstructure:"mode"`
	Host          string   `mapstructure:"host"`
	Local         string   `mapstructure:"local"`
	DefaultRemote string   `mapstructure:"default_remote"`
	Override      string   `mapstructure:"override"`
	RemotePool    []string `mapstructure:"remote_pool"`
}

// CaptchaConfig configures the third-party challenge solving service.
type CaptchaConfig struct {
	ServiceURL        string `mapstructure:"service_url"`
	SiteKey           string `mapstructure:"site_key"`
	RestrictedService string `mapstructure:"restricted_service"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// SlotConfig configures the advisory slot reservation coordinator.
type SlotConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CoordinatorURL  string `mapstructure:"coordinator_url"`
	CooldownSeconds int    `mapstructure:"cooldown_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

// RelayConfig controls the streaming media relay.
type RelayConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// CombineConfig controls the media concatenation pipeline.
type CombineConfig struct {
	FFmpegPath   string `mapstructure:"ffmpeg_path"`
	TmpDir       string `mapstructure:"tmp_dir"`
	MaxFiles     int    `mapstructure:"max_files"`
	MaxFileBytes int64  `mapstructure:"max_file_bytes"`
}

// ProfileConfig selects the credential-lookup capability backing.
type ProfileConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Account  string `mapstructure:"account"`
}

// UsageConfig selects the usage-recording capability backing.
type UsageConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ArchiveConfig selects where combined artifacts are archived, if anywhere.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 300)
	v.SetDefault("provider.origin", "https://app.genmedia.example")
	v.SetDefault("provider.referer", "https://app.genmedia.example/")
	v.SetDefault("provider.client_header", "X-Genmedia-Client")
	v.SetDefault("provider.client_id", "gateway")
	v.SetDefault("provider.timeout_seconds", 120)
	v.SetDefault("endpoints.mode", "server")
	v.SetDefault("endpoints.local", "http://127.0.0.1:8080")
	v.SetDefault("endpoints.default_remote", "https://gw.genmedia.example")
	v.SetDefault("captcha.restricted_service", "avatar")
	v.SetDefault("captcha.timeout_seconds", 60)
	v.SetDefault("slot.enabled", true)
	v.SetDefault("slot.cooldown_seconds", 8)
	v.SetDefault("slot.timeout_seconds", 5)
	v.SetDefault("relay.timeout_seconds", 0)
	v.SetDefault("combine.ffmpeg_path", "ffmpeg")
	v.SetDefault("combine.max_files", 10)
	v.SetDefault("combine.max_file_bytes", int64(500)<<20)
	v.SetDefault("profile.provider", "noop")
	v.SetDefault("usage.provider", "noop")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("logging.development", false)
}

// Validate verifies cross-field constraints that Viper cannot express.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Endpoints.Mode {
	case "desktop", "server":
	default:
		return fmt.Errorf("endpoints.mode must be desktop or server, got %q", c.Endpoints.Mode)
	}
	if c.Endpoints.Mode == "server" && c.Endpoints.DefaultRemote == "" && len(c.Endpoints.RemotePool) == 0 && c.Endpoints.Override == "" {
		return fmt.Errorf("endpoints: server mode requires a default_remote, override, or remote_pool")
	}
	if c.Combine.MaxFiles < 2 {
		return fmt.Errorf("combine.max_files must be at least 2, got %d", c.Combine.MaxFiles)
	}
	if c.Combine.MaxFileBytes <= 0 {
		return fmt.Errorf("combine.max_file_bytes must be positive")
	}
	switch c.Profile.Provider {
	case "noop", "memory", "postgres":
	default:
		return fmt.Errorf("unknown profile provider: %s", c.Profile.Provider)
	}
	if c.Profile.Provider == "postgres" && c.Profile.DSN == "" {
		return fmt.Errorf("profile.dsn is required for the postgres provider")
	}
	switch c.Usage.Provider {
	case "noop", "memory", "pubsub":
	default:
		return fmt.Errorf("unknown usage provider: %s", c.Usage.Provider)
	}
	if c.Usage.Provider == "pubsub" && (c.Usage.ProjectID == "" || c.Usage.TopicID == "") {
		return fmt.Errorf("usage: pubsub provider requires project_id and topic_id")
	}
	switch c.Archive.Provider {
	case "noop", "memory", "local", "gcs":
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	if c.Archive.Provider == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir is required for the local provider")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket is required for the gcs provider")
	}
	return nil
}
