// Package config provides configuration loading for the catalogue server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// CatalogueID is the identifier of this catalogue instance. Resources
	// registered without an explicit catalogue get this one, and the
	// synchronization hooks only act on it. Defaults to "eosc".
	CatalogueID string `yaml:"catalogueId,omitempty"`

	Auth       AuthConfig        `yaml:"auth"`
	Store      StoreConfig       `yaml:"store"`
	Messaging  *MessagingConfig  `yaml:"messaging,omitempty"`
	Mail       *MailConfig       `yaml:"mail,omitempty"`
	Sync       SyncConfig        `yaml:"sync,omitempty"`
}

// AuthConfig defines bearer-token validation settings.
type AuthConfig struct {
	// Secret is the HMAC secret tokens are signed with. May be left empty
	// and supplied through RC_AUTH_SECRET instead.
	Secret string `yaml:"secret,omitempty"`

	// SecretFile is read instead of Secret when set.
	SecretFile string `yaml:"secretFile,omitempty"`
}

// GetSecret returns the token secret using the following priority:
// 1. Read from SecretFile if specified
// 2. The inline Secret value
// 3. The RC_AUTH_SECRET environment variable
func (a *AuthConfig) GetSecret() ([]byte, error) {
	if a.SecretFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(a.SecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret from file %s: %w", a.SecretFile, err)
		}
		return []byte(strings.TrimSpace(string(data))), nil
	}

	if a.Secret != "" {
		return []byte(a.Secret), nil
	}

	if env := os.Getenv("RC_AUTH_SECRET"); env != "" {
		return []byte(env), nil
	}

	return nil, fmt.Errorf("no auth secret configured: set auth.secret, auth.secretFile or RC_AUTH_SECRET")
}

// StoreConfig selects and configures the document store backing the
// catalogue.
type StoreConfig struct {
	// Type is "memory" or "opensearch". Defaults to "memory".
	Type string `yaml:"type,omitempty"`

	OpenSearch *OpenSearchConfig `yaml:"opensearch,omitempty"`
}

// OpenSearchConfig defines the OpenSearch cluster connection.
type OpenSearchConfig struct {
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`

	// PasswordFile is read instead of Password when set.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// IndexPrefix namespaces the per-kind indices. Defaults to "catalogue".
	IndexPrefix string `yaml:"indexPrefix,omitempty"`

	// InsecureSkipTLSVerify disables certificate checks, for local clusters.
	InsecureSkipTLSVerify bool `yaml:"insecureSkipTlsVerify,omitempty"`
}

// GetPassword returns the cluster password using the following priority:
// 1. Read from PasswordFile if specified
// 2. The inline Password value
// 3. The RC_OPENSEARCH_PASSWORD environment variable
func (o *OpenSearchConfig) GetPassword() (string, error) {
	if o.PasswordFile != "" {
		cleanPath := filepath.Clean(o.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", o.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if o.Password != "" {
		return o.Password, nil
	}

	return os.Getenv("RC_OPENSEARCH_PASSWORD"), nil
}

// MessagingConfig defines the outbound notification topic connection.
type MessagingConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`

	// SubjectPrefix prefixes every published subject. Defaults to
	// "catalogue".
	SubjectPrefix string `yaml:"subjectPrefix,omitempty"`
}

// MailConfig defines the SMTP relay and the moderation distribution list.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Moderators receive onboarding-request notifications.
	Moderators []string `yaml:"moderators,omitempty"`
}

// SyncConfig tunes the synchronization hooks.
type SyncConfig struct {
	// PublicationMaxWait bounds how long the mirror hook waits for the
	// document store to make a fresh write readable, as a Go duration
	// string. Defaults to "30s".
	PublicationMaxWait string `yaml:"publicationMaxWait,omitempty"`

	// EventQueueSize is the per-hook event buffer. Defaults to 256.
	EventQueueSize int `yaml:"eventQueueSize,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no config file is given: the
// in-memory store and no outbound integrations.
func Default() *Config {
	return &Config{}
}

// GetCatalogueID returns the catalogue id, using "eosc" if not specified
func (c *Config) GetCatalogueID() string {
	if c.CatalogueID == "" {
		return "eosc"
	}
	return c.CatalogueID
}

// GetStoreType returns the store type, using "memory" if not specified
func (c *Config) GetStoreType() string {
	if c.Store.Type == "" {
		return "memory"
	}
	return c.Store.Type
}

// GetIndexPrefix returns the index prefix, using "catalogue" if not specified
func (o *OpenSearchConfig) GetIndexPrefix() string {
	if o == nil || o.IndexPrefix == "" {
		return "catalogue"
	}
	return o.IndexPrefix
}

// GetSubjectPrefix returns the subject prefix, using "catalogue" if not
// specified
func (m *MessagingConfig) GetSubjectPrefix() string {
	if m.SubjectPrefix == "" {
		return "catalogue"
	}
	return m.SubjectPrefix
}

// GetPublicationMaxWait returns the mirror wait bound, using 30s if not
// specified or unparsable
func (s *SyncConfig) GetPublicationMaxWait() time.Duration {
	d, err := time.ParseDuration(s.PublicationMaxWait)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetEventQueueSize returns the hook queue size, using 256 if not specified
func (s *SyncConfig) GetEventQueueSize() int {
	if s.EventQueueSize <= 0 {
		return 256
	}
	return s.EventQueueSize
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.GetStoreType() {
	case "memory":
	case "opensearch":
		if c.Store.OpenSearch == nil {
			return fmt.Errorf("store.opensearch is required when store.type is opensearch")
		}
		if len(c.Store.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("store.opensearch.addresses must not be empty")
		}
	default:
		return fmt.Errorf("unknown store type: %s", c.Store.Type)
	}

	if c.Messaging != nil && c.Messaging.URL == "" {
		return fmt.Errorf("messaging.url is required when messaging is configured")
	}

	if c.Mail != nil {
		if c.Mail.Host == "" || c.Mail.Port == 0 {
			return fmt.Errorf("mail.host and mail.port are required when mail is configured")
		}
		if c.Mail.From == "" {
			return fmt.Errorf("mail.from is required when mail is configured")
		}
	}

	if c.Sync.PublicationMaxWait != "" {
		if _, err := time.ParseDuration(c.Sync.PublicationMaxWait); err != nil {
			return fmt.Errorf("invalid sync.publicationMaxWait: %w", err)
		}
	}

	return nil
}
