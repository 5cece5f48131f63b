// Package config handles loading and validating the cozmoagent configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nadzzz/cozmoagent/internal/message"
)

// Config is the root configuration for the cozmoagent daemon.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Transports TransportsConfig  `mapstructure:"transports"`
	Planner    PlannerConfig     `mapstructure:"planner"`
	Stage      StageConfig       `mapstructure:"stage"`
	Targets    map[string]Target `mapstructure:"targets"`
	Journal    JournalConfig     `mapstructure:"journal"`
	Logging    LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	MQTT MQTTConfig `mapstructure:"mqtt"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// PlannerConfig selects and configures the planning backend.
type PlannerConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "local"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Local   LocalConfig  `mapstructure:"local"`
}

// OpenAIConfig holds settings for an OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LocalConfig holds self-hosted LLM settings.
type LocalConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // Ollama /api/generate or /v1/chat/completions
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StageConfig tunes the interpretation stage.
type StageConfig struct {
	Window      int    `mapstructure:"window"`       // exchanges kept in context
	RenderLimit int    `mapstructure:"render_limit"` // exchanges shown to the planner
	Overlap     string `mapstructure:"overlap"`      // "drop" or "queue"
}

// Target defines a downstream actuator in the config file.
type Target struct {
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"`
	Token    string `mapstructure:"token"`
}

// JournalConfig controls the sqlite command journal.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.mqtt.enabled", false)
	v.SetDefault("transports.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("transports.mqtt.topic", "cozmoagent/units")
	v.SetDefault("transports.mqtt.client_id", "cozmoagent")
	v.SetDefault("planner.backend", "openai")
	v.SetDefault("planner.openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("planner.openai.model", "deepseek/deepseek-chat-v3-0324:free")
	v.SetDefault("planner.openai.temperature", 0.2)
	v.SetDefault("planner.openai.timeout", 60*time.Second)
	v.SetDefault("planner.local.endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("planner.local.model", "llama3")
	v.SetDefault("planner.local.timeout", 120*time.Second)
	v.SetDefault("stage.window", 8)
	v.SetDefault("stage.render_limit", 8)
	v.SetDefault("stage.overlap", "drop")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", "cozmoagent.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"planner":   "planner.backend",
	"overlap":   "stage.overlap",
	"window":    "stage.window",
	"http-port": "transports.http.port",
	"log-level": "logging.level",
}

// RegisterFlags adds the configuration override flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("planner", "openai", "planner backend (openai, local)")
	fs.String("overlap", "drop", "what to do with input arriving while a plan is in flight (drop, queue)")
	fs.Int("window", 8, "conversation exchanges kept as planner context")
	fs.Int("http-port", 8080, "HTTP transport port")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

// Load reads the configuration from file, environment variables, flags and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./cozmoagent.yaml, ./configs/cozmoagent.yaml, /etc/cozmoagent/cozmoagent.yaml.
// Flags registered with RegisterFlags override every other source when set.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cozmoagent")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/cozmoagent")
	}

	// Environment variables: COZMOAGENT_PLANNER_BACKEND, COZMOAGENT_STAGE_OVERLAP, etc.
	v.SetEnvPrefix("COZMOAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	// Read config file (optional: env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENROUTER_API_KEY}")
	cfg.Planner.OpenAI.APIKey = resolveEnvRef(cfg.Planner.OpenAI.APIKey)
	for name, target := range cfg.Targets {
		target.Token = resolveEnvRef(target.Token)
		cfg.Targets[name] = target
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot check on its own.
func (c *Config) Validate() error {
	switch c.Planner.Backend {
	case "openai", "local":
	default:
		return fmt.Errorf("unknown planner backend %q", c.Planner.Backend)
	}
	switch c.Stage.Overlap {
	case "drop", "queue":
	default:
		return fmt.Errorf("unknown stage overlap policy %q", c.Stage.Overlap)
	}
	for name, t := range c.Targets {
		if t.Endpoint == "" {
			return fmt.Errorf("target %q has no endpoint", name)
		}
		switch t.Protocol {
		case "http", "grpc", "mqtt":
		default:
			return fmt.Errorf("target %q: unknown protocol %q", name, t.Protocol)
		}
	}
	return nil
}

// TargetList returns the configured targets as routing entries, ordered by name.
func (c *Config) TargetList() []message.Target {
	targets := make([]message.Target, 0, len(c.Targets))
	for name, t := range c.Targets {
		targets = append(targets, message.Target{
			Name:     name,
			Endpoint: t.Endpoint,
			Protocol: t.Protocol,
			Token:    t.Token,
		})
	}
	slices.SortFunc(targets, func(a, b message.Target) int { return strings.Compare(a.Name, b.Name) })
	return targets
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
