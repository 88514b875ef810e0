// Package config loads the Mira cognition core's configuration from
// environment variables, with an optional YAML override file layered on
// top - the same struct-per-concern shape codenerd's internal/config uses,
// mapped onto Mira's MIRA_* env surface (see original_source's
// crates/mira-server/src/config/env.rs).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config aggregates every concern-specific config struct.
type Config struct {
	DataDir      string             `yaml:"data_dir"`
	LLM          LLMConfig          `yaml:"llm"`
	Memory       MemoryConfig       `yaml:"memory"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Budget       BudgetConfig       `yaml:"budget"`
	Sudo         SudoConfig         `yaml:"sudo"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Logging      LoggingConfig      `yaml:"logging"`
	IPC          IPCConfig          `yaml:"ipc"`
}

// Load builds a Config from environment variables, then applies a YAML
// override file if overridePath is non-empty and exists.
func Load(overridePath string) (*Config, error) {
	dataDir := getenv("MIRA_DATA_DIR", ".mira")
	cfg := &Config{
		DataDir:      dataDir,
		LLM:          loadLLMConfig(),
		Memory:       loadMemoryConfig(),
		Scheduler:    loadSchedulerConfig(),
		Budget:       loadBudgetConfig(),
		Sudo:         loadSudoConfig(),
		Orchestrator: loadOrchestratorConfig(),
		Logging:      loadLoggingConfig(),
		IPC:          loadIPCConfig(dataDir),
	}

	if overridePath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(overridePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config override %s: %w", overridePath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config override %s: %w", overridePath, err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return fallback
	}
	return f
}
