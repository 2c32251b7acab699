package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/persistence"
	"github.com/starford/prefcenter/internal/session"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Store kinds.
const (
	StoreKindSQLite = "sqlite"
	StoreKindFS     = "fs"
	StoreKindMemory = "memory"
)

// Instance id strategies.
const (
	IDStrategyTimestamp = "timestamp"
	IDStrategyUUID      = "uuid"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	Form   FormConfig        `yaml:"form"`
	Auth   AuthConfig        `yaml:"auth"`
	Inbox  InboxConfig       `yaml:"inbox"`
	Assets AssetsConfig      `yaml:"assets"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Form.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
		return err
	}
	if err := c.Assets.Validate(); err != nil {
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
	// EventThrottle bounds how often a form.changed hint is pushed to SSE
	// clients of one session.
	EventThrottle time.Duration `yaml:"event_throttle"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.EventThrottle, validation.Min(time.Duration(0))),
	)
}

// StoreConfig selects and configures the durable key-value store.
type StoreConfig struct {
	Kind   string       `yaml:"kind"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	FS     FSConfig     `yaml:"fs"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(StoreKindSQLite, StoreKindFS, StoreKindMemory)),
	); err != nil {
		return err
	}
	switch c.Kind {
	case StoreKindSQLite:
		return c.SQLite.Validate()
	case StoreKindFS:
		return c.FS.Validate()
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FSConfig holds the directory of the file-per-key store.
type FSConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the FS store configuration.
func (c *FSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// FormConfig holds form model and persistence options.
type FormConfig struct {
	IDStrategy    string `yaml:"id_strategy"`
	RestoreValues bool   `yaml:"restore_values"`
	StoreKey      string `yaml:"store_key"`
}

// Validate validates the form configuration.
func (c *FormConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IDStrategy, validation.Required, validation.In(IDStrategyTimestamp, IDStrategyUUID)),
		validation.Field(&c.StoreKey, validation.Required),
	)
}

// IDGenerator returns a constructor for the configured id strategy.
func (c *FormConfig) IDGenerator() func() form.IDGenerator {
	if c.IDStrategy == IDStrategyUUID {
		return func() form.IDGenerator { return form.UUIDIDs{} }
	}
	return func() form.IDGenerator { return form.NewTimestampIDs() }
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
	// Normalise empty mode to "disabled".
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

// InboxConfig configures the import inbox. An empty Path disables it.
type InboxConfig struct {
	Path    string `yaml:"path"`
	Session string `yaml:"session"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	if c.Path == "" {
		return nil
	}
	if c.Session == "" {
		c.Session = session.DefaultSessionID
	}
	if !session.ValidID(c.Session) {
		return fmt.Errorf("inbox: invalid session id %q", c.Session)
	}
	return nil
}

// AssetsConfig holds the directory uploaded logo images are stored in.
type AssetsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the assets configuration.
func (c *AssetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:          8080,
				EventThrottle: time.Second,
			},
		},
		Store: StoreConfig{
			Kind:   StoreKindSQLite,
			SQLite: SQLiteConfig{Path: "./prefcenter.db"},
			FS:     FSConfig{Path: "./data"},
		},
		Form: FormConfig{
			IDStrategy: IDStrategyTimestamp,
			StoreKey:   persistence.DefaultKey,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Inbox: InboxConfig{
			Session: session.DefaultSessionID,
		},
		Assets: AssetsConfig{
			Path: "./assets",
		},
	}
}
