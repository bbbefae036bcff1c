package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jo-hoe/emotionmirror/internal/backend/commandstructure"
	"github.com/jo-hoe/emotionmirror/internal/backend/database"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultLogLevel       = "info"
	defaultThumbnailWidth = 360
	defaultMaxUploadBytes = 10 << 20
	defaultMaxImagePixels = 40_000_000
	defaultAPIKeyEnv      = "API_KEY"
	defaultRequestTimeout = 90 * time.Second
	defaultCookieName     = "emotionmirror_session"
	defaultIdleTimeout    = 30 * time.Minute
	defaultSweepInterval  = time.Minute
	defaultRateRequests   = 10
	defaultRateWindow     = time.Minute
)

// CommandConfig represents a generic command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type Gemini struct {
	APIKey           string        `yaml:"apiKey"`
	APIKeyEnv        string        `yaml:"apiKeyEnv"`
	EmotionModel     string        `yaml:"emotionModel"`
	AffirmationModel string        `yaml:"affirmationModel"`
	ArtModel         string        `yaml:"artModel"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
}

type SessionConfig struct {
	CookieName    string        `yaml:"cookieName"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port"`
	LogLevel       string          `yaml:"logLevel"`
	ThumbnailWidth int             `yaml:"thumbnailWidth"`
	MaxUploadBytes int64           `yaml:"maxUploadBytes"`
	MaxImagePixels int             `yaml:"maxImagePixels"`
	Database       Database        `yaml:"database"`
	Gemini         Gemini          `yaml:"gemini"`
	Session        SessionConfig   `yaml:"session"`
	RateLimit      RateLimit       `yaml:"rateLimit"`
	Commands       []CommandConfig `yaml:"commands"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses YAML configuration and fills in defaults for omitted values
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults()

	if err := validateCommands(config.Commands); err != nil {
		return nil, fmt.Errorf("invalid command configuration: %w", err)
	}
	if config.Database.Type != database.TypeSQLite && config.Database.Type != database.TypeRedis {
		return nil, fmt.Errorf("unsupported database type: %s", config.Database.Type)
	}
	return &config, nil
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.ThumbnailWidth <= 0 {
		c.ThumbnailWidth = defaultThumbnailWidth
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = defaultMaxImagePixels
	}
	if c.Database.Type == "" {
		c.Database.Type = database.TypeSQLite
	}
	if c.Database.Type == database.TypeSQLite && c.Database.ConnectionString == "" {
		c.Database.ConnectionString = ":memory:"
	}
	if c.Gemini.APIKeyEnv == "" {
		c.Gemini.APIKeyEnv = defaultAPIKeyEnv
	}
	if c.Gemini.RequestTimeout <= 0 {
		c.Gemini.RequestTimeout = defaultRequestTimeout
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = defaultCookieName
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = defaultIdleTimeout
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = defaultSweepInterval
	}
	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = defaultRateRequests
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = defaultRateWindow
	}
}

// ResolveAPIKey returns the configured Gemini key, falling back to the environment
func (c *ServiceConfig) ResolveAPIKey() (string, error) {
	if key := strings.TrimSpace(c.Gemini.APIKey); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(c.Gemini.APIKeyEnv)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("no Gemini API key configured: set %s or gemini.apiKey", c.Gemini.APIKeyEnv)
}

// CommandConfigs converts the configured commands for the command registry
func (c *ServiceConfig) CommandConfigs() []commandstructure.CommandConfig {
	configs := make([]commandstructure.CommandConfig, len(c.Commands))
	for i, cmd := range c.Commands {
		configs[i] = commandstructure.CommandConfig{Name: cmd.Name, Params: cmd.Params}
	}
	return configs
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}
		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true

		if !commandstructure.DefaultRegistry.IsRegistered(cmd.Name) {
			return fmt.Errorf("unknown command at index %d: %s (registered: %v)", i, cmd.Name, commandstructure.DefaultRegistry.GetRegisteredNames())
		}
	}

	return nil
}
