package config

import (
	"net"
	"strconv"
	"time"
)

// Model providers
const (
	ProviderOpenAI    = "OpenAI"
	ProviderAnthropic = "Anthropic"
	ProviderGemini    = "Gemini"
)

// Store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the agentdesk configuration file
type Config struct {
	Model        ModelConfig        `mapstructure:"model" yaml:"model"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Credentials  CredentialsConfig  `mapstructure:"credentials" yaml:"credentials"`
	Store        StoreConfig        `mapstructure:"store" yaml:"store"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	MCPServers   []MCPServerConfig  `mapstructure:"mcp_servers" yaml:"mcp_servers,omitempty"`
	Project      ProjectConfig      `mapstructure:"project" yaml:"project"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// ModelConfig selects the provider and model
type ModelConfig struct {
	Provider    string   `mapstructure:"provider" yaml:"provider"`
	Name        string   `mapstructure:"name" yaml:"name"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey      string   `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv   string   `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
}

// OrchestratorConfig holds the turn loop tunables
type OrchestratorConfig struct {
	MaxToolRounds int           `mapstructure:"max_tool_rounds" yaml:"max_tool_rounds"`
	MaxRetries    *int          `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffBase   time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffMax    time.Duration `mapstructure:"backoff_max" yaml:"backoff_max"`
	BackoffJitter float64       `mapstructure:"backoff_jitter" yaml:"backoff_jitter"`
	SystemPrompt  string        `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
	SnippetMode   bool          `mapstructure:"snippet_mode" yaml:"snippet_mode"`
}

// Retries returns MaxRetries, treating nil as zero
func (o OrchestratorConfig) Retries() int {
	if o.MaxRetries == nil {
		return 0
	}
	return *o.MaxRetries
}

// CredentialsConfig configures where the provider token comes from
type CredentialsConfig struct {
	TokenFile     string        `mapstructure:"token_file" yaml:"token_file,omitempty"`
	RefreshPeriod time.Duration `mapstructure:"refresh_period" yaml:"refresh_period,omitempty"`
}

// StoreConfig configures chat history persistence
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// MCPServerConfig describes an MCP server reached over streamable HTTP
// (URL) or spawned over stdio (Command).
type MCPServerConfig struct {
	Name    string            `mapstructure:"name" yaml:"name"`
	URL     string            `mapstructure:"url" yaml:"url,omitempty"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Command string            `mapstructure:"command" yaml:"command,omitempty"`
	Args    []string          `mapstructure:"args" yaml:"args,omitempty"`
	Env     map[string]string `mapstructure:"env" yaml:"env,omitempty"`
}

// ProjectConfig describes the project given to the model as context
type ProjectConfig struct {
	Root         string   `mapstructure:"root" yaml:"root,omitempty"`
	MaxFileBytes int64    `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	Files        []string `mapstructure:"files" yaml:"files,omitempty"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}
