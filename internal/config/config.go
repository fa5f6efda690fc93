package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Site    SiteConfig     `yaml:"site"`
	Sources []Source       `yaml:"sources"`
	Daemon  *DaemonConfig  `yaml:"daemon,omitempty"`
	Notify  *NotifyConfig  `yaml:"notify,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// SiteConfig identifies the documentation site repository that sync runs
// commit into.
type SiteConfig struct {
	URL      string       `yaml:"url"`
	Branch   string       `yaml:"branch,omitempty"`
	DocsRoot string       `yaml:"docs_root,omitempty"`
	Auth     *AuthConfig  `yaml:"auth,omitempty"`
	Author   CommitAuthor `yaml:"author,omitempty"`
}

// CommitAuthor is the identity used for sync commits.
type CommitAuthor struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// Source represents an upstream repository whose markdown tree is mirrored
// into the site repository.
type Source struct {
	Name        string      `yaml:"name"`
	URL         string      `yaml:"url"`
	Branch      string      `yaml:"branch,omitempty"`
	DocsRoot    string      `yaml:"docs_root,omitempty"`
	Destination string      `yaml:"destination"`
	Forge       ForgeRef    `yaml:"forge"`
	Auth        *AuthConfig `yaml:"auth,omitempty"`
}

// ForgeType enumerates supported forge providers.
type ForgeType string

const (
	ForgeGitHub  ForgeType = "github"
	ForgeGitLab  ForgeType = "gitlab"
	ForgeForgejo ForgeType = "forgejo"
)

// ForgeRef locates a source repository on its forge, for webhook matching
// and edit-URL construction.
type ForgeRef struct {
	Type          ForgeType `yaml:"type"`
	BaseURL       string    `yaml:"base_url,omitempty"`
	FullName      string    `yaml:"full_name"`
	WebhookSecret string    `yaml:"webhook_secret,omitempty"`
}

// AuthConfig represents git authentication configuration.
type AuthConfig struct {
	Type     string `yaml:"type"` // "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// DaemonConfig configures daemon mode.
type DaemonConfig struct {
	WebhookAddr  string        `yaml:"webhook_addr,omitempty"`
	AdminAddr    string        `yaml:"admin_addr,omitempty"`
	DataDir      string        `yaml:"data_dir,omitempty"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	SyncInterval time.Duration `yaml:"sync_interval,omitempty"` // 0 disables scheduled full syncs
	Retry        RetryConfig   `yaml:"retry,omitempty"`
}

// NotifyConfig configures the optional NATS run-summary publisher.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

// Load loads configuration from the specified file.
//
// A .env file next to the working directory is loaded first (missing files are
// fine), then environment variables are expanded inside the YAML content, so
// secrets can be referenced as ${SOURCE_GO_WEBHOOK_SECRET}.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Branch == "" {
		c.Site.Branch = "main"
	}
	if c.Site.DocsRoot == "" {
		c.Site.DocsRoot = "docs"
	}
	if c.Site.Author.Name == "" {
		c.Site.Author.Name = "docsync"
	}
	if c.Site.Author.Email == "" {
		c.Site.Author.Email = "docsync@localhost"
	}

	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Branch == "" {
			src.Branch = "main"
		}
		if src.DocsRoot == "" {
			src.DocsRoot = "docs"
		}
		if src.Forge.BaseURL == "" {
			switch src.Forge.Type {
			case ForgeGitHub:
				src.Forge.BaseURL = "https://github.com"
			case ForgeGitLab:
				src.Forge.BaseURL = "https://gitlab.com"
			}
		}
	}

	if c.Daemon != nil {
		if c.Daemon.WebhookAddr == "" {
			c.Daemon.WebhookAddr = ":8080"
		}
		if c.Daemon.AdminAddr == "" {
			c.Daemon.AdminAddr = ":8081"
		}
		if c.Daemon.DataDir == "" {
			c.Daemon.DataDir = "./docsync-data"
		}
		if c.Daemon.Debounce <= 0 {
			c.Daemon.Debounce = 10 * time.Second
		}
		c.Daemon.Retry = c.Daemon.Retry.withDefaults()
	}

	if c.Notify != nil && c.Notify.Enabled {
		if c.Notify.Subject == "" {
			c.Notify.Subject = "docsync.runs"
		}
	}
}

// SourceByName returns the configured source with the given name.
func (c *Config) SourceByName(name string) (*Source, bool) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// SourceByFullName returns the source matching a forge repository full name
// (owner/repo), as reported in webhook payloads.
func (c *Config) SourceByFullName(fullName string) (*Source, bool) {
	for i := range c.Sources {
		if c.Sources[i].Forge.FullName == fullName {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Site: SiteConfig{
			URL:      "https://github.com/example/docs-site.git",
			Branch:   "main",
			DocsRoot: "website/docs",
			Auth: &AuthConfig{
				Type:  "token",
				Token: "${SITE_PUSH_TOKEN}",
			},
			Author: CommitAuthor{Name: "docsync bot", Email: "bot@example.com"},
		},
		Sources: []Source{
			{
				Name:        "go",
				URL:         "https://github.com/example/framework-go.git",
				Branch:      "main",
				DocsRoot:    "docs",
				Destination: "implementation_guides/go",
				Forge: ForgeRef{
					Type:          ForgeGitHub,
					FullName:      "example/framework-go",
					WebhookSecret: "${SOURCE_GO_WEBHOOK_SECRET}",
				},
			},
			{
				Name:        "jvm",
				URL:         "https://gitlab.com/example/framework-jvm.git",
				Branch:      "master",
				DocsRoot:    "docs",
				Destination: "implementation_guides/jvm",
				Forge: ForgeRef{
					Type:     ForgeGitLab,
					FullName: "example/framework-jvm",
				},
			},
		},
		Daemon: &DaemonConfig{
			WebhookAddr:  ":8080",
			AdminAddr:    ":8081",
			DataDir:      "./docsync-data",
			Debounce:     10 * time.Second,
			SyncInterval: 6 * time.Hour,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
