// Package persistence saves and loads form model snapshots through a
// key-value store, and converts models to and from portable export
// documents.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/storage"
)

// DefaultKey is the store key saved configurations live under.
const DefaultKey = "formConfiguration"

// storedDocument is the shape written by Save.
type storedDocument struct {
	FormItems   []models.PlacedItem `json:"formItems"`
	Preferences map[string]bool     `json:"preferences"`
	FormValues  map[string]any      `json:"formValues"`
	FormStyles  map[string]string   `json:"formStyles,omitempty"`
}

func (d storedDocument) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.FormItems, validation.NotNil),
		validation.Field(&d.Preferences, validation.NotNil),
	)
}

// Gateway reads and writes snapshots of a form model.
type Gateway struct {
	store         storage.Provider
	key           string
	restoreValues bool
	now           func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithKey overrides the store key.
func WithKey(key string) Option {
	return func(g *Gateway) {
		g.key = key
	}
}

// WithRestoreValues makes Load return the saved item values. By default
// they are written but not read back, so a reloaded form starts blank.
func WithRestoreValues(on bool) Option {
	return func(g *Gateway) {
		g.restoreValues = on
	}
}

// WithClock sets the time source used for export dates.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a gateway over store.
func NewGateway(store storage.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		store: store,
		key:   DefaultKey,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Key returns the store key this gateway uses.
func (g *Gateway) Key() string { return g.key }

// Save writes a full snapshot of m, replacing any earlier one.
func (g *Gateway) Save(ctx context.Context, m *form.Model) error {
	snap := m.Snapshot()
	data, err := json.Marshal(storedDocument{
		FormItems:   snap.Items,
		Preferences: snap.PreferenceFlags,
		FormValues:  snap.Values,
		FormStyles:  snap.Styles,
	})
	if err != nil {
		return fmt.Errorf("persistence: encode: %w", err)
	}
	if err := g.store.Put(ctx, g.key, data); err != nil {
		return fmt.Errorf("persistence: save: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Load reads the saved snapshot. It returns apperr.ErrNotFound when nothing
// was saved yet and apperr.ErrCorruptState when the stored document cannot
// be decoded.
func (g *Gateway) Load(ctx context.Context) (form.Snapshot, error) {
	data, err := g.store.Get(ctx, g.key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return form.Snapshot{}, apperr.ErrNotFound
		}
		return form.Snapshot{}, fmt.Errorf("persistence: load: %w: %w", apperr.ErrStorageUnavailable, err)
	}

	var doc storedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return form.Snapshot{}, fmt.Errorf("persistence: decode: %w: %w", apperr.ErrCorruptState, err)
	}
	if err := doc.Validate(); err != nil {
		return form.Snapshot{}, fmt.Errorf("persistence: decode: %w: %w", apperr.ErrCorruptState, err)
	}

	snap := form.Snapshot{
		Items:           doc.FormItems,
		Styles:          doc.FormStyles,
		PreferenceFlags: doc.Preferences,
	}
	if g.restoreValues {
		snap.Values = doc.FormValues
		if snap.Values == nil {
			snap.Values = map[string]any{}
		}
	}
	return snap, nil
}

// Clear removes the saved snapshot.
func (g *Gateway) Clear(ctx context.Context) error {
	if err := g.store.Delete(ctx, g.key); err != nil {
		return fmt.Errorf("persistence: clear: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	return nil
}
