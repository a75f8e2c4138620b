package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Store     StoreConfig       `yaml:"store"`
	Library   LibraryConfig     `yaml:"library"`
	Reconcile ReconcileConfig   `yaml:"reconcile"`
	Feed      FeedConfig        `yaml:"feed"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig holds SQLite content store configuration.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// LibraryConfig holds the on-disk resource library layout.
type LibraryConfig struct {
	ResourcesDir   string `yaml:"resources_dir"`
	MetadataFile   string `yaml:"metadata_file"`
	ThumbsDir      string `yaml:"thumbs_dir"`
	KnowledgeDir   string `yaml:"knowledge_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ResourcesDir, validation.Required),
		validation.Field(&c.MetadataFile, validation.Required),
		validation.Field(&c.ThumbsDir, validation.Required),
		validation.Field(&c.KnowledgeDir, validation.Required),
		validation.Field(&c.MaxUploadBytes, validation.Min(0)),
	)
}

// ReconcileConfig holds the fuzzy-match tuning for knowledge reconciliation.
type ReconcileConfig struct {
	Threshold   float64 `yaml:"threshold"`
	TitleWeight float64 `yaml:"title_weight"`
	DateWeight  float64 `yaml:"date_weight"`
}

// Validate validates the reconcile configuration.
func (c *ReconcileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Threshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.TitleWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.DateWeight, validation.Min(0.0), validation.Max(1.0)),
	)
}

// FeedConfig holds the external feed source. URL may be empty; refresh then
// falls back to the bundled sample file.
type FeedConfig struct {
	URL        string `yaml:"url"`
	SamplePath string `yaml:"sample_path"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Path: "./content.db",
		},
		Library: LibraryConfig{
			ResourcesDir:   "./library/resources",
			MetadataFile:   "./library/resources/metadata.json",
			ThumbsDir:      "./library/thumbs",
			KnowledgeDir:   "./library/knowledge",
			MaxUploadBytes: 100 << 20,
		},
		Reconcile: ReconcileConfig{
			Threshold:   0.5,
			TitleWeight: 0.7,
			DateWeight:  0.3,
		},
		Feed: FeedConfig{
			SamplePath: "./config/feed_sample.json",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
