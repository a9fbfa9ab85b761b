// Package config loads generator settings from an optional YAML file and
// TUUID_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Lzww0608/tuuid"
	"github.com/Lzww0608/tuuid/internal/log"
)

// EnvPrefix is prepended to every environment variable, e.g. TUUID_NODE.
const EnvPrefix = "TUUID"

// Config is the resolved configuration.
type Config struct {
	Version       int        `mapstructure:"version"`
	Node          string     `mapstructure:"node"`
	NodeSource    string     `mapstructure:"node_source"`
	Overrun       string     `mapstructure:"overrun"`
	ClockSequence int        `mapstructure:"clock_sequence"`
	Log           log.Config `mapstructure:"log"`
	Registry      Registry   `mapstructure:"registry"`
}

// Registry selects an external node identifier lease.
type Registry struct {
	Kind      string        `mapstructure:"kind"` // "", "mysql" or "zookeeper"
	DSN       string        `mapstructure:"dsn"`
	ZKServers []string      `mapstructure:"zk_servers"`
	Service   string        `mapstructure:"service"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", 7)
	v.SetDefault("node", "")
	v.SetDefault("node_source", "hardware")
	v.SetDefault("overrun", "advance")
	v.SetDefault("clock_sequence", -1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "tuuid")
	v.SetDefault("registry.kind", "")
	v.SetDefault("registry.dsn", "")
	v.SetDefault("registry.zk_servers", []string{})
	v.SetDefault("registry.service", "tuuid")
	v.SetDefault("registry.timeout", 5*time.Second)
}

// Load reads configuration from path (optional) and the environment.
// An empty path searches for tuuid.yaml in the working directory and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tuuid")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// viper does not split list values taken from the environment
	if len(cfg.Registry.ZKServers) == 1 && strings.Contains(cfg.Registry.ZKServers[0], ",") {
		cfg.Registry.ZKServers = strings.Split(cfg.Registry.ZKServers[0], ",")
	}
	return &cfg, nil
}

// GeneratorVersion validates and returns the configured UUID version.
func (c *Config) GeneratorVersion() (tuuid.Version, error) {
	switch v := tuuid.Version(c.Version); v {
	case tuuid.VersionTimeBased, tuuid.VersionReorderedTime, tuuid.VersionUnixTime:
		return v, nil
	default:
		return 0, fmt.Errorf("config: version %d: %w", c.Version, tuuid.ErrInvalidVersion)
	}
}

// Options converts the configuration into generator options.
func (c *Config) Options() ([]tuuid.Option, error) {
	var opts []tuuid.Option

	if c.Node != "" {
		n, err := tuuid.ParseNodeIdentifier(c.Node)
		if err != nil {
			return nil, fmt.Errorf("config: node: %w", err)
		}
		opts = append(opts, tuuid.WithNodeIdentifier(n))
	} else {
		src, err := tuuid.ParseNodeSource(c.NodeSource)
		if err != nil {
			return nil, fmt.Errorf("config: node_source: %w", err)
		}
		opts = append(opts, tuuid.WithNodeSource(src))
	}

	policy, err := tuuid.ParseOverrunPolicy(c.Overrun)
	if err != nil {
		return nil, fmt.Errorf("config: overrun: %w", err)
	}
	opts = append(opts, tuuid.WithOverrunPolicy(policy))

	if c.ClockSequence >= 0 {
		if c.ClockSequence >= tuuid.ClockSequenceCount {
			return nil, fmt.Errorf("config: clock_sequence %d exceeds 14 bits", c.ClockSequence)
		}
		opts = append(opts, tuuid.WithClockSequence(tuuid.ClockSequence(c.ClockSequence)))
	}
	return opts, nil
}
