// Package config defines the typed configuration tree loaded from the
// bridge's YAML config file. Loading from disk is a thin convenience
// wrapper; process launch and log sink setup are the caller's job.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration tree.
type Config struct {
	Bridge        BridgeConfig        `yaml:"bridge"`
	Gateways      []GatewayConfig     `yaml:"gateways"`
	Entertainment EntertainmentConfig `yaml:"entertainment"`
	Persist       PersistConfig       `yaml:"persist"`
	Log           LogConfig           `yaml:"log"`
	API           APIConfig           `yaml:"api"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	Name string `yaml:"name"`
	MAC  string `yaml:"mac"` // hardware address the bridge_id is derived from
}

// GatewayConfig describes one upstream gateway the reconciler connects to.
type GatewayConfig struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Prefix string `yaml:"group_prefix"` // only upstream groups named with this prefix are exposed

	DialTimeout     Duration `yaml:"dial_timeout"`
	MinRetryBackoff Duration `yaml:"min_retry_backoff"`
	MaxRetryBackoff Duration `yaml:"max_retry_backoff"`
	RetryMultiplier float64  `yaml:"retry_multiplier"`
	CommandRateRPS  float64  `yaml:"command_rate_rps"`
}

// EntertainmentConfig configures the DTLS-PSK entertainment listener.
type EntertainmentConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"`
	FrameGap   Duration `yaml:"frame_gap"` // parsed but not read by the listener; sessions idle out after a fixed 5s
}

// PersistConfig configures where bridge state is written to disk.
type PersistConfig struct {
	Path          string   `yaml:"path"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
}

// APIConfig configures the client-facing HTTP surface.
type APIConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	LinkButtonWindow Duration `yaml:"link_button_window"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// Duration is a wrapper around time.Duration accepting Go duration
// strings ("5s", "2m30s") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file, applying defaults for
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bridge.Name == "" {
		cfg.Bridge.Name = "bifrost"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	for i := range cfg.Gateways {
		g := &cfg.Gateways[i]
		if g.DialTimeout == 0 {
			g.DialTimeout = Duration(10 * time.Second)
		}
		if g.MinRetryBackoff == 0 {
			g.MinRetryBackoff = Duration(time.Second)
		}
		if g.MaxRetryBackoff == 0 {
			g.MaxRetryBackoff = Duration(60 * time.Second)
		}
		if g.RetryMultiplier == 0 {
			g.RetryMultiplier = 2.0
		}
		if g.CommandRateRPS == 0 {
			g.CommandRateRPS = 10.0
		}
	}

	if cfg.Entertainment.ListenAddr == "" {
		cfg.Entertainment.ListenAddr = "0.0.0.0:2100"
	}
	if cfg.Entertainment.FrameGap == 0 {
		cfg.Entertainment.FrameGap = Duration(5 * time.Second)
	}

	if cfg.Persist.Path == "" {
		cfg.Persist.Path = "./bifrost-state.yaml"
	}
	if cfg.Persist.FlushInterval == 0 {
		cfg.Persist.FlushInterval = Duration(5 * time.Second)
	}

	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = "0.0.0.0:443"
	}
	if cfg.API.LinkButtonWindow == 0 {
		cfg.API.LinkButtonWindow = Duration(30 * time.Second)
	}
	if cfg.API.ShutdownTimeout == 0 {
		cfg.API.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// expandEnvVars expands ${VAR} or ${VAR:default} references.
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables.
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
