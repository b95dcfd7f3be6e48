package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode      string `mapstructure:"mode"`
	LogLevel  string `mapstructure:"log_level"`
	SelfID    string `mapstructure:"self_id"`
	SignalURL string `mapstructure:"signal_url"`
	// DebugPort serves /api/sessions, /healthz and /metrics. Zero disables it.
	DebugPort  int           `mapstructure:"debug_port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
	ICEServers []string      `mapstructure:"ice_servers"`

	// GlarePolicy is "last_writer_wins" or "polite".
	GlarePolicy       string        `mapstructure:"glare_policy"`
	OutboundWorkers   int           `mapstructure:"outbound_workers"`
	NegotiationLimit  int           `mapstructure:"negotiation_limit"`
	NegotiationWindow time.Duration `mapstructure:"negotiation_window"`
	// RecordDir receives one media file per remote track. Empty disables recording.
	RecordDir string `mapstructure:"record_dir"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("self_id", "")
	v.SetDefault("signal_url", "ws://localhost:8080/ws")
	v.SetDefault("debug_port", 0)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("ice_servers", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
		"stun:stun2.l.google.com:19302",
		"stun:stun3.l.google.com:19302",
		"stun:stun4.l.google.com:19302",
	})
	v.SetDefault("glare_policy", "last_writer_wins")
	v.SetDefault("outbound_workers", 4)
	v.SetDefault("negotiation_limit", 0)
	v.SetDefault("negotiation_window", "10s")
	v.SetDefault("record_dir", "")
	return v
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults when it is absent.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return load(fmt.Sprintf("config/config.%s.yaml", env), false)
}

// LoadFile reads an explicit config file; unlike Load a missing file is an error.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

func load(fileName string, required bool) (*Config, error) {
	v := newViper()
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if required || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("signal_url", cfg.SignalURL).
		Int("debug_port", cfg.DebugPort).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	switch c.GlarePolicy {
	case "", "last_writer_wins", "polite":
	default:
		return fmt.Errorf("config: unknown glare_policy %q", c.GlarePolicy)
	}
	if c.SignalURL == "" {
		return errors.New("config: signal_url is required")
	}
	if c.DebugPort < 0 || c.DebugPort > 65535 {
		return fmt.Errorf("config: debug_port %d out of range", c.DebugPort)
	}
	if c.NegotiationLimit > 0 && c.NegotiationWindow <= 0 {
		return errors.New("config: negotiation_window must be positive when negotiation_limit is set")
	}
	return nil
}
