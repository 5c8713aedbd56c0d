// Package config loads process configuration and resolves per-agent adapter
// configuration through a layered provider chain.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the process-wide configuration. Read-only after Load.
type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Storage  StorageConfig `koanf:"storage"`
	Judge    JudgeConfig   `koanf:"judge"`
	Agents   []AgentConfig `koanf:"agents"`
	AgentDir string        `koanf:"agent_dir"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Path is the sqlite database file for run history. Empty disables
	// persistence.
	Path string `koanf:"path"`
}

// JudgeConfig configures the LLM judge used by suites that score with a
// model. An empty APIKey disables judge-backed scoring paths.
type JudgeConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// Load reads config.yaml (or the file named by path) and applies TB_*
// environment overrides and built-in defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment overrides: TB_SERVER__PORT=9090 -> server.port
	if err := k.Load(env.Provider("TB_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TB_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.path") {
		k.Set("storage.path", "./data/testbridge.db")
	}
	if !k.Exists("agent_dir") {
		k.Set("agent_dir", "config/agents")
	}
	if !k.Exists("judge.model") {
		k.Set("judge.model", "gpt-4o-mini")
	}
	if !k.Exists("judge.api_key") {
		k.Set("judge.api_key", os.Getenv("OPENAI_API_KEY"))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Agents {
		cfg.Agents[i].APIKey = substituteEnvVars(cfg.Agents[i].APIKey)
		cfg.Agents[i].Email = substituteEnvVars(cfg.Agents[i].Email)
		cfg.Agents[i].Password = substituteEnvVars(cfg.Agents[i].Password)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars expands ${VAR} references so secrets can live in the
// environment while the config file stays committable.
func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
