// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"commit-reporter/internal/classify"
	"commit-reporter/internal/compose"
	"commit-reporter/internal/model"
)

// DefaultSystemPrompt defines the assistant role used when the config file
// does not override it.
const DefaultSystemPrompt = "You are a senior engineering lead who turns " +
	"technical work into clear, concise progress reports. Group related work, " +
	"highlight outcomes over activity, and keep the result under 500 words of Markdown."

// DefaultUserPrompt is the stock report template. It carries the one
// required commit-log placeholder.
const DefaultUserPrompt = "Write a progress report from the commit log below.\n\n{commit_log}"

// RepoEntry is one repository block in the config file.
type RepoEntry struct {
	Name    string        `mapstructure:"name"`
	Path    string        `mapstructure:"path"`
	Kind    string        `mapstructure:"kind"`
	Enabled *bool         `mapstructure:"enabled"`
	Authors []AuthorEntry `mapstructure:"authors"`
}

// AuthorEntry is one author-filter rule in the config file.
type AuthorEntry struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// ProviderEntry is one backend credential block in the config file.
type ProviderEntry struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AIConfig selects the active provider and holds the prompt settings.
type AIConfig struct {
	Provider     string                   `mapstructure:"provider"`
	SystemPrompt string                   `mapstructure:"system_prompt"`
	UserPrompt   string                   `mapstructure:"user_prompt"`
	Temperature  float64                  `mapstructure:"temperature"`
	Configs      map[string]ProviderEntry `mapstructure:"configs"`
}

// ClassifyConfig overrides the classifier's noise tables.
type ClassifyConfig struct {
	MinMessageLength int      `mapstructure:"min_message_length"`
	NoiseMarkers     []string `mapstructure:"noise_markers"`
}

// Config holds all configuration for the application.
type Config struct {
	LogLevel    string         `mapstructure:"log_level"`
	Concurrency int            `mapstructure:"concurrency"`
	RepoTimeout time.Duration  `mapstructure:"repo_timeout"`
	KeepNoise   bool           `mapstructure:"keep_noise"`
	GithubToken string         `mapstructure:"github_token"`
	Repos       []RepoEntry    `mapstructure:"repos"`
	AI          AIConfig       `mapstructure:"ai"`
	Classify    ClassifyConfig `mapstructure:"classify"`
}

// Load reads configuration from the given YAML file, overlaying defaults
// and REPORTER_* environment variables. Validation failures surface here,
// at load time, not during report generation.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("concurrency", 4)
	v.SetDefault("repo_timeout", "30s")
	v.SetDefault("keep_noise", false)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.system_prompt", DefaultSystemPrompt)
	v.SetDefault("ai.user_prompt", DefaultUserPrompt)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("classify.min_message_length", 3)
	v.SetDefault("classify.noise_markers", []string{"sync", "wip"})

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reporter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("REPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.RepoTimeout <= 0 {
		return errors.New("repo_timeout must be a positive duration")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.New("ai.temperature must be between 0.0 and 2.0")
	}
	if err := compose.ValidateTemplate(c.AI.UserPrompt); err != nil {
		return err
	}
	for i, repo := range c.Repos {
		if repo.Name == "" {
			return fmt.Errorf("repos[%d]: name is required", i)
		}
		if repo.Path == "" {
			return fmt.Errorf("repos[%d] (%s): path is required", i, repo.Name)
		}
		switch model.RepoKind(repo.Kind) {
		case model.RepoKindLocal, model.RepoKindGitHub, "":
		default:
			return fmt.Errorf("repos[%d] (%s): unknown kind %q", i, repo.Name, repo.Kind)
		}
	}
	return nil
}

// Repositories returns the configured repository entries as core configs,
// registration order assigned by file position.
func (c *Config) Repositories() []model.RepositoryConfig {
	repos := make([]model.RepositoryConfig, 0, len(c.Repos))
	for i, entry := range c.Repos {
		kind := model.RepoKind(entry.Kind)
		if kind == "" {
			kind = model.RepoKindLocal
		}
		enabled := true
		if entry.Enabled != nil {
			enabled = *entry.Enabled
		}
		authors := make([]model.AuthorRule, 0, len(entry.Authors))
		for _, a := range entry.Authors {
			authors = append(authors, model.AuthorRule{Name: a.Name, Email: a.Email})
		}
		repos = append(repos, model.RepositoryConfig{
			Name:    entry.Name,
			Path:    entry.Path,
			Kind:    kind,
			Enabled: enabled,
			Authors: authors,
			Order:   i,
		})
	}
	return repos
}

// ActiveProvider resolves the provider selected by ai.provider into a core
// provider config.
func (c *Config) ActiveProvider() (model.ProviderConfig, error) {
	entry, ok := c.AI.Configs[c.AI.Provider]
	if !ok {
		return model.ProviderConfig{}, fmt.Errorf("no configuration found for provider %q", c.AI.Provider)
	}
	return model.ProviderConfig{
		ID:      c.AI.Provider,
		APIKey:  entry.APIKey,
		Model:   entry.Model,
		BaseURL: entry.BaseURL,
	}, nil
}

// ClassifierConfig returns the classifier tables with any configured
// overrides applied to the defaults.
func (c *Config) ClassifierConfig() classify.Config {
	cfg := classify.Default()
	if c.Classify.MinMessageLength > 0 {
		cfg.MinMessageLength = c.Classify.MinMessageLength
	}
	if len(c.Classify.NoiseMarkers) > 0 {
		cfg.NoiseMarkers = c.Classify.NoiseMarkers
	}
	return cfg
}
