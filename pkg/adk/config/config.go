package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kagent-dev/agentdesk/pkg/adk/errors"
)

const (
	EnvPrefix     = "AGENTDESK"
	DefaultModel  = "gpt-4.1"
	configDirName = ".agentdesk"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    DefaultModel,
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderGemini:    "gemini-2.5-flash",
}

var defaultAPIKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"model":           "model.name",
	"provider":        "model.provider",
	"max-tool-rounds": "orchestrator.max_tool_rounds",
	"max-retries":     "orchestrator.max_retries",
}

// Dir returns the agentdesk home directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configDirName
	}
	return filepath.Join(home, configDirName)
}

// DefaultPath returns the default configuration file path
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	retries := 3
	return &Config{
		Model: ModelConfig{
			Provider:  ProviderOpenAI,
			Name:      DefaultModel,
			APIKeyEnv: defaultAPIKeyEnv[ProviderOpenAI],
		},
		Orchestrator: OrchestratorConfig{
			MaxToolRounds: 10,
			MaxRetries:    &retries,
			BackoffBase:   500 * time.Millisecond,
			BackoffMax:    8 * time.Second,
			BackoffJitter: 0.2,
		},
		Credentials: CredentialsConfig{
			RefreshPeriod: time.Minute,
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(Dir(), "chats.db"),
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8484,
		},
		Project: ProjectConfig{
			MaxFileBytes: 256 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file at path, applying .env files,
// AGENTDESK_* environment variables and flags, then defaults.
// A missing file is not an error. An empty path means DefaultPath().
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, DefaultConfig())

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeAgentConfig, fmt.Sprintf("failed to read config file %s", path), err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, fmt.Sprintf("failed to stat config file %s", path), err)
	}

	modelFlagSet := false
	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, apperrors.New(apperrors.ErrCodeAgentConfig, fmt.Sprintf("failed to bind flag %s", name), err)
			}
			if name == "model" && flag.Changed {
				modelFlagSet = true
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeAgentConfig, "failed to parse config", err)
	}

	if model := os.Getenv("OPENAI_MODEL"); model != "" && (cfg.Model.Provider == "" || cfg.Model.Provider == ProviderOpenAI) && !modelFlagSet {
		cfg.Model.Name = model
	}

	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	cfg.ResolveAPIKey()
	cfg.expandPaths()

	return &cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			// existing environment variables win over .env entries
			_ = godotenv.Load(p)
		}
	}
}

// registerDefaults makes every scalar key known to viper so that
// AutomaticEnv applies to it during Unmarshal.
func registerDefaults(v *viper.Viper, d *Config) {
	// provider-dependent defaults are filled by SetDefaults
	v.SetDefault("model.provider", "")
	v.SetDefault("model.name", "")
	v.SetDefault("model.base_url", d.Model.BaseURL)
	v.SetDefault("model.api_key", d.Model.APIKey)
	v.SetDefault("model.api_key_env", "")
	v.SetDefault("model.max_tokens", d.Model.MaxTokens)
	v.SetDefault("orchestrator.max_tool_rounds", d.Orchestrator.MaxToolRounds)
	v.SetDefault("orchestrator.max_retries", d.Orchestrator.Retries())
	v.SetDefault("orchestrator.backoff_base", d.Orchestrator.BackoffBase)
	v.SetDefault("orchestrator.backoff_max", d.Orchestrator.BackoffMax)
	v.SetDefault("orchestrator.backoff_jitter", d.Orchestrator.BackoffJitter)
	v.SetDefault("orchestrator.system_prompt", "")
	v.SetDefault("orchestrator.snippet_mode", false)
	v.SetDefault("credentials.token_file", d.Credentials.TokenFile)
	v.SetDefault("credentials.refresh_period", d.Credentials.RefreshPeriod)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("project.root", d.Project.Root)
	v.SetDefault("project.max_file_bytes", d.Project.MaxFileBytes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

// SetDefaults fills every unset field from DefaultConfig
func (c *Config) SetDefaults() error {
	if c.Model.Provider == "" {
		c.Model.Provider = ProviderOpenAI
	}
	if c.Model.Name == "" {
		c.Model.Name = defaultModels[c.Model.Provider]
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = defaultAPIKeyEnv[c.Model.Provider]
	}
	if err := mergo.Merge(c, DefaultConfig()); err != nil {
		return apperrors.New(apperrors.ErrCodeAgentConfig, "failed to apply defaults", err)
	}
	return nil
}

// ResolveAPIKey reads the API key from APIKeyEnv when none is configured
func (c *Config) ResolveAPIKey() {
	if c.Model.APIKey == "" && c.Model.APIKeyEnv != "" {
		c.Model.APIKey = os.Getenv(c.Model.APIKeyEnv)
	}
}

func (c *Config) expandPaths() {
	c.Store.DSN = expandHome(c.Store.DSN)
	c.Credentials.TokenFile = expandHome(c.Credentials.TokenFile)
	c.Project.Root = expandHome(c.Project.Root)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if _, ok := defaultAPIKeyEnv[c.Model.Provider]; !ok {
		add("model.provider %q is not one of OpenAI, Anthropic, Gemini", c.Model.Provider)
	}
	if c.Model.Name == "" {
		add("model.name is required")
	}
	if c.Model.MaxTokens < 0 {
		add("model.max_tokens must not be negative")
	}
	if c.Orchestrator.MaxToolRounds < 1 {
		add("orchestrator.max_tool_rounds must be at least 1")
	}
	if c.Orchestrator.Retries() < 0 {
		add("orchestrator.max_retries must not be negative")
	}
	if c.Orchestrator.BackoffBase <= 0 {
		add("orchestrator.backoff_base must be positive")
	}
	if c.Orchestrator.BackoffMax < c.Orchestrator.BackoffBase {
		add("orchestrator.backoff_max must be at least backoff_base")
	}
	if c.Orchestrator.BackoffJitter < 0 || c.Orchestrator.BackoffJitter >= 1 {
		add("orchestrator.backoff_jitter must be in [0, 1)")
	}
	if c.Store.Driver != DriverSQLite && c.Store.Driver != DriverPostgres {
		add("store.driver %q is not one of sqlite, postgres", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		add("store.dsn is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port %d is out of range", c.Server.Port)
	}
	if c.Project.MaxFileBytes < 0 {
		add("project.max_file_bytes must not be negative")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		add("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	names := map[string]struct{}{}
	for i, s := range c.MCPServers {
		if s.Name == "" {
			add("mcp_servers[%d].name is required", i)
		} else if _, dup := names[s.Name]; dup {
			add("mcp_servers[%d].name %q is duplicated", i, s.Name)
		}
		names[s.Name] = struct{}{}
		if (s.URL == "") == (s.Command == "") {
			add("mcp_servers[%d] needs exactly one of url or command", i)
		}
	}

	if result == nil {
		return nil
	}
	return apperrors.New(apperrors.ErrCodeAgentConfig, "invalid configuration", result.ErrorOrNil())
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if out.Model.APIKey != "" {
		out.Model.APIKey = "********"
	}
	return &out
}

// Save writes cfg to path as YAML, creating parent directories
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
