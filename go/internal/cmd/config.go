package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/gridduel/go/internal/game/server"
	"github.com/mcdev12/gridduel/go/internal/game/session"
)

type Config struct {
	Server struct {
		Port  int  `yaml:"port"`
		Debug bool `yaml:"debug"`
	} `yaml:"server"`
	Game struct {
		TurnSeconds int `yaml:"turn_seconds"`
	} `yaml:"game"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// serverConfig merges defaults, the optional yaml file and env-var overrides
// into the server configuration. Env vars win over the file.
func serverConfig() server.Config {
	cfg := server.DefaultConfig()

	if fileCfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml")); err == nil {
		if fileCfg.Server.Port != 0 {
			cfg.Port = fileCfg.Server.Port
		}
		if fileCfg.Game.TurnSeconds != 0 {
			cfg.Session.TurnSeconds = fileCfg.Game.TurnSeconds
		}
		cfg.Session.Debug = fileCfg.Server.Debug
	}

	cfg.Port = getEnvAsInt("PORT", cfg.Port)
	cfg.Session = session.Config{
		TurnSeconds: getEnvAsInt("TURN_SECONDS", cfg.Session.TurnSeconds),
		Debug:       getEnvAsBool("DEBUG", cfg.Session.Debug),
	}
	return cfg
}
