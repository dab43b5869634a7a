package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional ~/.config/chatty/config.yaml. Pointer fields tell
// "not set" apart from zero values.
type Config struct {
	Model       string   `yaml:"model"`
	Host        string   `yaml:"host"`
	SessionsDir string   `yaml:"sessions_dir"`
	MaxTokens   *int64   `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`

	StreamMode    string `yaml:"stream_mode"`
	HideReasoning *bool  `yaml:"hide_reasoning"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

const envChattyConfig = "CHATTY_CONFIG"

func configPath() string {
	if p := os.Getenv(envChattyConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chatty", "config.yaml")
}

// LoadConfig reads the config file. A missing or unreadable file yields a
// zero Config.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyEngineConfig fills engine, storage and logging settings from cfg
// wherever the matching flag was not given.
func applyEngineConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelName = cfg.Model
	}
	if cfg.Host != "" && !c.IsSet("host") {
		engineHost = cfg.Host
	}
	if cfg.SessionsDir != "" && !c.IsSet("sessions-dir") {
		sessionsDir = cfg.SessionsDir
	}
	if cfg.MaxTokens != nil && !c.IsSet("max-tokens") {
		maxTokens = *cfg.MaxTokens
	}
	if cfg.Temperature != nil && !c.IsSet("temperature") {
		temperature = *cfg.Temperature
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyChatConfig(c *cli.Command, cfg Config) {
	applyEngineConfig(c, cfg)
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		streamMode = cfg.StreamMode
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyEngineConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
