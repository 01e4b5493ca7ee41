// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// WorkspaceOverrideFile is the optional per-workspace override file,
// looked up at the working root.
const WorkspaceOverrideFile = ".taskagent.yaml"

// Config represents the agent configuration.
type Config struct {
	Agent    AgentConfig    `toml:"agent"`
	LLM      LLMConfig      `toml:"llm"`
	Limits   LimitsConfig   `toml:"limits"`
	SubAgent SubAgentConfig `toml:"subagent"`
}

// AgentConfig contains agent workspace settings.
type AgentConfig struct {
	WorkDir string `toml:"work_dir"` // Working root for all file tools
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`      // lmstudio|openai-compat|openrouter|litellm|ollama|openai|anthropic
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"`      // Endpoint for OpenAI-compatible providers
	APIKey       string `toml:"api_key"`       // Literal key; local endpoints accept a placeholder
	APIKeyEnv    string `toml:"api_key_env"`   // Env var holding the key, preferred over api_key
	MaxTokens    int    `toml:"max_tokens"`
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// LimitsConfig contains loop protection settings.
type LimitsConfig struct {
	MaxToolRounds       int `toml:"max_tool_rounds"`       // Model responses per run before forced finalization
	MaxRepeatSignatures int `toml:"max_repeat_signatures"` // Occurrences of one call signature that trip the guard
	SignatureWindow     int `toml:"signature_window"`      // Sliding window of recent call signatures
	MaxMissingFiles     int `toml:"max_missing_files"`     // Consecutive missing-file results before forced finalization
}

// SubAgentConfig contains sub-agent process settings.
type SubAgentConfig struct {
	MaxDepth       int `toml:"max_depth"`       // Nesting levels below the main agent
	TimeoutSeconds int `toml:"timeout_seconds"` // Wall-clock limit per sub-agent process
}

// New creates a new config with defaults. Defaults target a local
// LM Studio endpoint so the agent works without any config file.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			WorkDir: "workspace",
		},
		LLM: LLMConfig{
			Provider:     "lmstudio",
			Model:        "qwen/qwen3-4b-2507",
			BaseURL:      "http://localhost:1234/v1",
			APIKey:       "lm-studio",
			MaxTokens:    4096,
			MaxRetries:   5,
			RetryBackoff: "60s",
		},
		Limits: LimitsConfig{
			MaxToolRounds:       12,
			MaxRepeatSignatures: 3,
			SignatureWindow:     6,
			MaxMissingFiles:     3,
		},
		SubAgent: SubAgentConfig{
			MaxDepth:       2,
			TimeoutSeconds: 300,
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load resolves configuration for startup. An explicit path must exist;
// with no path, agent.toml in the current directory is used when present,
// defaults otherwise.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if _, err := os.Stat("agent.toml"); err != nil {
		return Default(), nil
	}
	return LoadFile("agent.toml")
}

// workspaceOverrides is the shape of the optional .taskagent.yaml file.
// Only fields a workspace may legitimately tune are accepted.
type workspaceOverrides struct {
	LLM struct {
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"llm"`
	Limits struct {
		MaxToolRounds       int `yaml:"max_tool_rounds"`
		MaxRepeatSignatures int `yaml:"max_repeat_signatures"`
		SignatureWindow     int `yaml:"signature_window"`
		MaxMissingFiles     int `yaml:"max_missing_files"`
	} `yaml:"limits"`
}

// ApplyWorkspaceOverrides merges .taskagent.yaml from the working root,
// if present. Zero values in the file leave the base config untouched.
func (c *Config) ApplyWorkspaceOverrides(workDir string) error {
	path := filepath.Join(workDir, WorkspaceOverrideFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read workspace overrides: %w", err)
	}

	var ov workspaceOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("failed to parse %s: %w", WorkspaceOverrideFile, err)
	}

	if ov.LLM.Model != "" {
		c.LLM.Model = ov.LLM.Model
	}
	if ov.LLM.MaxTokens > 0 {
		c.LLM.MaxTokens = ov.LLM.MaxTokens
	}
	if ov.Limits.MaxToolRounds > 0 {
		c.Limits.MaxToolRounds = ov.Limits.MaxToolRounds
	}
	if ov.Limits.MaxRepeatSignatures > 0 {
		c.Limits.MaxRepeatSignatures = ov.Limits.MaxRepeatSignatures
	}
	if ov.Limits.SignatureWindow > 0 {
		c.Limits.SignatureWindow = ov.Limits.SignatureWindow
	}
	if ov.Limits.MaxMissingFiles > 0 {
		c.Limits.MaxMissingFiles = ov.Limits.MaxMissingFiles
	}
	return nil
}

// GetAPIKey resolves the API key: api_key_env wins when set, then the
// literal api_key, then the provider's conventional env var.
func (c *Config) GetAPIKey() string {
	if c.LLM.APIKeyEnv != "" {
		if v := os.Getenv(c.LLM.APIKeyEnv); v != "" {
			return v
		}
	}
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	if envVar := DefaultAPIKeyEnv(c.LLM.Provider); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}

// DefaultAPIKeyEnv returns the conventional environment variable name
// for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// RetryBackoffDuration parses the retry_backoff setting, falling back
// to one minute when unset or malformed.
func (c *Config) RetryBackoffDuration() time.Duration {
	if c.LLM.RetryBackoff == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.LLM.RetryBackoff)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
