package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"content_orchestra/internal/domain"
)

const DefaultPath = "config.toml"

type Config struct {
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Simulation   SimulationConfig   `toml:"simulation"`
	Providers    ProvidersConfig    `toml:"providers"`
	Agents       []AgentConfig      `toml:"agents"`
	Raw          map[string]any     `toml:"-"`
	Path         string             `toml:"-"`
}

type OrchestratorConfig struct {
	Addr               string   `toml:"addr"`
	DBPath             string   `toml:"db_path"`
	ActivityIntervalMS int      `toml:"activity_interval_ms"`
	PipelineIntervalMS int      `toml:"pipeline_interval_ms"`
	AdapterTimeoutMS   int      `toml:"adapter_timeout_ms"`
	RetryBackoffMS     int      `toml:"retry_backoff_ms"`
	MaxRetryBackoffMS  int      `toml:"max_retry_backoff_ms"`
	TrendsPerIntake    int      `toml:"trends_per_intake"`
	Region             string   `toml:"region"`
	Category           string   `toml:"category"`
	Audience           string   `toml:"audience"`
	Platforms          []string `toml:"platforms"`
	OptimizeDelayMS    int      `toml:"optimize_delay_ms"`
	ReviewDelayMS      int      `toml:"review_delay_ms"`
	Seed               uint64   `toml:"seed"`
}

type SimulationConfig struct {
	ActivityChance      float64 `toml:"activity_chance"`
	VideoActivityChance float64 `toml:"video_activity_chance"`
}

type ProvidersConfig struct {
	Generator       string `toml:"generator"`
	Endpoint        string `toml:"endpoint"`
	Model           string `toml:"model"`
	AuthTokenEnv    string `toml:"auth_token_env"`
	TrendsFixture   string `toml:"trends_fixture"`
	GenerateDelayMS int    `toml:"generate_delay_ms"`
	VideoDelayMS    int    `toml:"video_delay_ms"`
}

type AgentConfig struct {
	ID         string `toml:"id"`
	Name       string `toml:"name"`
	Capability string `toml:"capability"`
}

// Load reads a TOML file. With an empty path it tries config.toml in the
// working directory and falls back to an empty Config when that is absent.
func Load(path string) (Config, error) {
	resolved := path
	optional := resolved == ""
	if optional {
		resolved = DefaultPath
	}
	if strings.HasPrefix(resolved, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed := strings.TrimPrefix(resolved, "~")
		trimmed = strings.TrimPrefix(trimmed, "\\")
		trimmed = strings.TrimPrefix(trimmed, "/")
		resolved = filepath.Join(home, trimmed)
	}
	resolved = filepath.Clean(resolved)

	bytes, err := os.ReadFile(resolved)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return Config{Raw: map[string]any{}}, nil
		}
		return Config{}, fmt.Errorf("read config file %s: %w", resolved, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(bytes), &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config file: %w", err)
	}
	var raw map[string]any
	if _, err := toml.Decode(string(bytes), &raw); err != nil {
		return Config{}, fmt.Errorf("decode raw config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", resolved, err)
	}
	cfg.Raw = raw
	cfg.Path = resolved
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.TrimSpace(c.Providers.Generator) {
	case "", "stub", "responses":
	default:
		return fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidArgument, c.Providers.Generator)
	}
	if c.Simulation.ActivityChance < 0 || c.Simulation.ActivityChance > 1 ||
		c.Simulation.VideoActivityChance < 0 || c.Simulation.VideoActivityChance > 1 {
		return fmt.Errorf("%w: simulation chances must be within [0,1]", domain.ErrInvalidArgument)
	}
	for _, a := range c.Agents {
		if !domain.Capability(a.Capability).Valid() {
			return fmt.Errorf("%w: agent %q has unknown capability %q", domain.ErrInvalidArgument, a.ID, a.Capability)
		}
	}
	return nil
}

// Roster returns the configured agents, or nil when the file lists none.
func (c Config) Roster() []domain.Agent {
	if len(c.Agents) == 0 {
		return nil
	}
	out := make([]domain.Agent, 0, len(c.Agents))
	for _, a := range c.Agents {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = a.ID
		}
		out = append(out, domain.Agent{
			ID:         strings.TrimSpace(a.ID),
			Name:       name,
			Capability: domain.Capability(a.Capability),
		})
	}
	return out
}
