package internal

import (
	"log/slog"

	"github.com/starford/prefcenter/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
	store  storage.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the JSON logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithStore uses store instead of opening the one named by the
// configuration. The caller keeps ownership and closes it.
func WithStore(store storage.Provider) Option {
	return func(a *application) {
		a.store = store
	}
}
