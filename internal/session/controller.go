// Package session orchestrates user-facing form operations on top of the
// form model and the persistence gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/persistence"
)

// maxImportSize bounds the document read by Import.
const maxImportSize = 1 << 20

// User-facing messages.
const (
	MsgRequiredFields = "Please fill in all required fields"
	MsgSaved          = "Form configuration saved successfully!"
	MsgSaveFailed     = "Could not save the form configuration. Please try again."
	MsgLoadFailed     = "Could not load the saved configuration; starting with an empty form."
	MsgImported       = "Configuration imported successfully!"
	MsgImportFailed   = "Error importing configuration. Please check the file format."
	MsgReset          = "Configuration reset."
	MsgResetFailed    = "Could not reset the configuration. Please try again."
)

// Notice levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notice is a message for the user produced by a controller operation.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ValidationError is returned by Save when required items are blank.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	ids := make([]string, 0, len(e.Errors))
	for id := range e.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	msgs := make([]string, len(ids))
	for i, id := range ids {
		msgs[i] = e.Errors[id]
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return apperr.ErrValidation }

// Intent is a placement request from the drag-drop collaborator. Exactly
// one of TemplateKind and PreferenceKind is set.
type Intent struct {
	TemplateKind   string                `json:"templateKind,omitempty"`
	PreferenceKind models.PreferenceKind `json:"preferenceKind,omitempty"`
}

// View is a read-only picture of a session for outer surfaces.
type View struct {
	SessionID       string              `json:"sessionId"`
	PreviewMode     bool                `json:"previewMode"`
	Title           string              `json:"title"`
	Items           []models.PlacedItem `json:"formItems"`
	Values          map[string]any      `json:"formValues"`
	Errors          map[string]string   `json:"formErrors"`
	Styles          map[string]string   `json:"formStyles"`
	PreferenceFlags map[string]bool     `json:"preferences"`
}

// Controller owns one form model and serializes every operation on it.
type Controller struct {
	mu       sync.Mutex
	id       string
	model    *form.Model
	gateway  *persistence.Gateway
	registry catalog.Registry
	logger   *slog.Logger
	onEvent  EventFunc
	preview  bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithEventFunc registers a callback for session events.
func WithEventFunc(fn EventFunc) ControllerOption {
	return func(c *Controller) {
		c.onEvent = fn
	}
}

// WithID names the session for logs and events.
func WithID(id string) ControllerOption {
	return func(c *Controller) {
		c.id = id
	}
}

// NewController creates a controller in edit mode.
func NewController(model *form.Model, gateway *persistence.Gateway, opts ...ControllerOption) *Controller {
	c := &Controller{
		id:      DefaultSessionID,
		model:   model,
		gateway: gateway,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("session", c.id))
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Open restores the saved configuration, if any. A missing configuration
// leaves the form empty and is not an error.
func (c *Controller) Open(ctx context.Context) (Notice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.gateway.Load(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return Notice{}, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = c.model.Restore(snap)
	}
	if err != nil {
		c.logger.Warn("session: load failed", slog.String("error", err.Error()))
		return c.notice(LevelError, MsgLoadFailed), fmt.Errorf("session: open: %w", err)
	}
	c.logger.Info("session: loaded", slog.Int("items", c.model.Len()))
	c.emit(EventLoaded, map[string]any{"items": c.model.Len()})
	return Notice{}, nil
}

// View returns the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() View {
	return View{
		SessionID:       c.id,
		PreviewMode:     c.preview,
		Title:           c.model.Title(),
		Items:           c.model.Items(),
		Values:          c.model.Values(),
		Errors:          c.model.Errors(),
		Styles:          c.model.Styles(),
		PreferenceFlags: c.model.PreferenceFlags(),
	}
}

// RenderOrder returns the items in the order a renderer should show them.
func (c *Controller) RenderOrder() []models.PlacedItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.RenderOrder()
}

// PreviewMode reports whether the session is in preview mode.
func (c *Controller) PreviewMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// CanMutateStructure reports whether items may be added, removed or
// reordered. It is false in preview mode.
func (c *Controller) CanMutateStructure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canMutate()
}

func (c *Controller) canMutate() bool { return !c.preview }

func (c *Controller) requireEditMode(op string) error {
	if !c.canMutate() {
		return fmt.Errorf("session: %s: %w", op, apperr.ErrPreviewMode)
	}
	return nil
}

// TogglePreview switches between edit and preview mode and returns the new mode.
func (c *Controller) TogglePreview() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.preview = !c.preview
	c.emit(EventPreviewToggled, map[string]any{"previewMode": c.preview})
	return c.preview
}

// Drop places a new item for in.
func (c *Controller) Drop(in Intent) (models.PlacedItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("drop"); err != nil {
		return models.PlacedItem{}, err
	}

	var (
		item models.PlacedItem
		ok   bool
	)
	pref := in.PreferenceKind
	if pref == "" {
		pref, _ = c.registry.KindOf(in.TemplateKind)
	}
	switch {
	case pref != "":
		item, ok = c.registry.Instantiate(c.model, pref)
	case in.TemplateKind != "":
		var tpl models.ItemTemplate
		if tpl, ok = catalog.Lookup(in.TemplateKind); ok {
			item = c.model.AddItem(tpl, "")
		}
	}
	if !ok {
		return models.PlacedItem{}, fmt.Errorf("session: drop %+v: %w", in, apperr.ErrUnknownTemplate)
	}

	c.logger.Debug("session: item added", slog.String("id", item.InstanceID), slog.String("kind", item.Kind))
	c.emit(EventItemAdded, item)
	return item, nil
}

// Delete removes an item. Deleting an unknown id is a no-op.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("delete"); err != nil {
		return err
	}
	if _, ok := c.model.Item(id); !ok {
		return nil
	}
	c.model.RemoveItem(id)
	c.emit(EventItemRemoved, map[string]any{"id": id})
	return nil
}

// Reorder moves an item between positions. Out-of-range indices indicate a
// wiring fault in the caller; they are logged and reported, and the order is
// left alone.
func (c *Controller) Reorder(from, to int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("reorder"); err != nil {
		return err
	}
	if err := c.model.Reorder(from, to); err != nil {
		c.logger.Warn("session: reorder rejected", slog.Int("from", from), slog.Int("to", to), slog.String("error", err.Error()))
		return err
	}
	c.emit(EventItemsReordered, map[string]any{"from": from, "to": to})
	return nil
}

// Edit sets the value of an item. It is allowed in preview mode.
func (c *Controller) Edit(id string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.model.Item(id); !ok {
		return fmt.Errorf("session: edit %q: %w", id, apperr.ErrNotFound)
	}
	c.model.SetValue(id, v)
	value, _ := c.model.Value(id)
	c.emit(EventValueChanged, map[string]any{"id": id, "value": value})
	return nil
}

// SetStyle updates a global style attribute.
func (c *Controller) SetStyle(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("set style"); err != nil {
		return err
	}
	c.model.SetStyle(key, value)
	c.emit(EventStyleChanged, map[string]any{"key": key, "value": value})
	return nil
}

// TogglePreference flips a legacy preference flag.
func (c *Controller) TogglePreference(flag string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("toggle preference"); err != nil {
		return false, err
	}
	on := c.model.TogglePreferenceFlag(flag)
	c.emit(EventPreferenceToggled, map[string]any{"flag": flag, "on": on})
	return on, nil
}

// Validate runs required-field validation and returns the result.
func (c *Controller) Validate() form.ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.model.Validate()
	c.emit(EventValidated, map[string]any{"ok": res.OK(), "errors": res.Errors})
	return res
}

// Save validates the form and persists it. A failed validation aborts the
// save and returns a *ValidationError.
func (c *Controller) Save(ctx context.Context) (Notice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.model.Validate()
	c.emit(EventValidated, map[string]any{"ok": res.OK(), "errors": res.Errors})
	if !res.OK() {
		return c.notice(LevelError, MsgRequiredFields), &ValidationError{Errors: res.Errors}
	}
	if err := c.gateway.Save(ctx, c.model); err != nil {
		c.logger.Error("session: save failed", slog.String("error", err.Error()))
		return c.notice(LevelError, MsgSaveFailed), fmt.Errorf("session: save: %w", err)
	}
	c.logger.Info("session: saved", slog.Int("items", c.model.Len()))
	c.emit(EventSaved, map[string]any{"items": c.model.Len()})
	return c.notice(LevelInfo, MsgSaved), nil
}

// Reset deletes the saved configuration and empties the form.
func (c *Controller) Reset(ctx context.Context) (Notice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("reset"); err != nil {
		return Notice{}, err
	}
	if err := c.gateway.Clear(ctx); err != nil {
		c.logger.Error("session: reset failed", slog.String("error", err.Error()))
		return c.notice(LevelError, MsgResetFailed), fmt.Errorf("session: reset: %w", err)
	}
	c.model.Reset()
	c.logger.Info("session: reset")
	c.emit(EventReset, nil)
	return c.notice(LevelInfo, MsgReset), nil
}

// Export renders the current configuration as a downloadable document.
func (c *Controller) Export() ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateway.ExportDocument(c.model)
}

// Import reads an exported document from r and replaces the form items and
// preference flags with its contents. Item values are not imported. On any
// failure, including ctx being cancelled before the document is applied,
// the form is left as it was.
func (c *Controller) Import(ctx context.Context, r io.Reader) (Notice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireEditMode("import"); err != nil {
		return Notice{}, err
	}

	err := c.importFrom(ctx, r)
	if err != nil {
		c.logger.Warn("session: import failed", slog.String("error", err.Error()))
		return c.notice(LevelError, MsgImportFailed), fmt.Errorf("session: import: %w", err)
	}
	c.logger.Info("session: imported", slog.Int("items", c.model.Len()))
	c.emit(EventImported, map[string]any{"items": c.model.Len()})
	return c.notice(LevelInfo, MsgImported), nil
}

func (c *Controller) importFrom(ctx context.Context, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxImportSize+1))
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if len(data) > maxImportSize {
		return fmt.Errorf("document larger than %d bytes: %w", maxImportSize, apperr.ErrInvalidDocument)
	}
	snap, err := c.gateway.ImportDocument(data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.model.Restore(snap)
}

func (c *Controller) notice(level, msg string) Notice {
	n := Notice{Level: level, Message: msg}
	c.emit(EventNotice, n)
	return n
}

func (c *Controller) emit(typ string, data any) {
	if c.onEvent != nil {
		c.onEvent(Event{SessionID: c.id, Type: typ, Data: data})
	}
}
