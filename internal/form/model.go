// Package form implements the form model: the ordered placed items, their
// values and validation errors, global styles and preference flags.
//
// A Model is not safe for concurrent use. Callers own it exclusively; the
// session controller serializes access.
package form

import (
	"fmt"
	"maps"
	"slices"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/models"
)

// Model is the aggregate root of a form under construction.
type Model struct {
	ids           IDGenerator
	defaultStyles map[string]string
	defaultFlags  map[string]bool

	items  []models.PlacedItem
	values map[string]any
	errors map[string]string
	styles map[string]string
	flags  map[string]bool
}

// Option configures a Model.
type Option func(*Model)

// WithIDGenerator sets the instance id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Model) {
		m.ids = g
	}
}

// WithDefaultStyles replaces the styles a fresh or reset model starts with.
func WithDefaultStyles(styles map[string]string) Option {
	return func(m *Model) {
		m.defaultStyles = maps.Clone(styles)
	}
}

// WithDefaultPreferenceFlags replaces the flags a fresh or reset model starts with.
func WithDefaultPreferenceFlags(flags map[string]bool) Option {
	return func(m *Model) {
		m.defaultFlags = maps.Clone(flags)
	}
}

// New creates an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		ids:           NewTimestampIDs(),
		defaultStyles: DefaultStyles(),
		defaultFlags:  DefaultPreferenceFlags(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Reset()
	return m
}

// Reset empties the model and restores default styles and flags.
func (m *Model) Reset() {
	m.items = []models.PlacedItem{}
	m.values = make(map[string]any)
	m.errors = make(map[string]string)
	m.styles = maps.Clone(m.defaultStyles)
	m.flags = maps.Clone(m.defaultFlags)
}

// AddItem places a new item built from t and initializes its value.
func (m *Model) AddItem(t models.ItemTemplate, pref models.PreferenceKind) models.PlacedItem {
	b := catalog.BehaviorFor(t.ValueType)

	item := models.PlacedItem{
		InstanceID:     m.nextID(t.Kind),
		Kind:           t.Kind,
		Label:          t.Label,
		ValueType:      t.ValueType,
		Required:       t.Required,
		DefaultValue:   t.DefaultValue,
		PreferenceKind: pref,
	}
	if pref != "" {
		item.ValueType = models.ValueBoolean
		item.DefaultValue = false
		b = catalog.BehaviorFor(models.ValueBoolean)
	}

	initial := b.Zero
	if item.DefaultValue != nil {
		initial = b.Coerce(item.DefaultValue)
	}

	m.items = append(m.items, item)
	m.values[item.InstanceID] = initial
	return item
}

// nextID asks the generator for an id, retrying on the rare clash with an
// id already on the canvas (e.g. one restored from a document).
func (m *Model) nextID(kind string) string {
	for {
		id := m.ids.NewID(kind)
		if m.indexOf(id) < 0 {
			return id
		}
	}
}

// RemoveItem deletes the item with id together with its value and error.
// Unknown ids are ignored.
func (m *Model) RemoveItem(id string) {
	if i := m.indexOf(id); i >= 0 {
		m.items = slices.Delete(m.items, i, i+1)
	}
	delete(m.values, id)
	delete(m.errors, id)
}

// Reorder moves the item at from to position to.
func (m *Model) Reorder(from, to int) error {
	n := len(m.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("form: reorder %d -> %d with %d items: %w", from, to, n, apperr.ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	item := m.items[from]
	m.items = slices.Delete(m.items, from, from+1)
	m.items = slices.Insert(m.items, to, item)
	return nil
}

// SetValue stores v for id, coerced to the item's value type, and clears a
// pending validation error for it. Unknown ids are ignored.
func (m *Model) SetValue(id string, v any) {
	i := m.indexOf(id)
	if i < 0 {
		return
	}
	m.values[id] = catalog.BehaviorFor(m.items[i].ValueType).Coerce(v)
	delete(m.errors, id)
}

// SetStyle stores a global style attribute. Keys are not checked.
func (m *Model) SetStyle(key, value string) {
	m.styles[key] = value
}

// SetPreferenceFlag sets a legacy preference flag.
func (m *Model) SetPreferenceFlag(flag string, on bool) {
	m.flags[flag] = on
}

// TogglePreferenceFlag flips a legacy preference flag and returns the new state.
func (m *Model) TogglePreferenceFlag(flag string) bool {
	m.flags[flag] = !m.flags[flag]
	return m.flags[flag]
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	// Errors maps instance ids to messages.
	Errors map[string]string
}

// OK reports whether no item failed validation.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate records "<label> is required" for every required item with a
// blank value. The previous error map is replaced.
func (m *Model) Validate() ValidationResult {
	errs := make(map[string]string)
	for _, item := range m.items {
		if item.Required && catalog.IsBlank(m.values[item.InstanceID]) {
			errs[item.InstanceID] = item.Label + " is required"
		}
	}
	m.errors = errs
	return ValidationResult{Errors: maps.Clone(errs)}
}

// Items returns a copy of the placed items in order.
func (m *Model) Items() []models.PlacedItem {
	return cloneItems(m.items)
}

// Item returns the item with id.
func (m *Model) Item(id string) (models.PlacedItem, bool) {
	if i := m.indexOf(id); i >= 0 {
		return m.items[i], true
	}
	return models.PlacedItem{}, false
}

// Len returns the number of placed items.
func (m *Model) Len() int { return len(m.items) }

// Value returns the current value for id.
func (m *Model) Value(id string) (any, bool) {
	v, ok := m.values[id]
	return v, ok
}

// Values returns a copy of the value map.
func (m *Model) Values() map[string]any { return maps.Clone(m.values) }

// Errors returns a copy of the error map.
func (m *Model) Errors() map[string]string { return maps.Clone(m.errors) }

// Styles returns a copy of the style map.
func (m *Model) Styles() map[string]string { return maps.Clone(m.styles) }

// PreferenceFlags returns a copy of the legacy preference flags.
func (m *Model) PreferenceFlags() map[string]bool { return maps.Clone(m.flags) }

// Title is the value of the first heading item, falling back to the heading style.
func (m *Model) Title() string {
	for _, item := range m.items {
		if !item.IsHeading() {
			continue
		}
		if s, ok := m.values[item.InstanceID].(string); ok && s != "" {
			return s
		}
	}
	return m.styles[StyleHeading]
}

// RenderOrder returns the items with heading items first; the relative
// order within each group is kept.
func (m *Model) RenderOrder() []models.PlacedItem {
	out := make([]models.PlacedItem, 0, len(m.items))
	for _, item := range m.items {
		if item.IsHeading() {
			out = append(out, item)
		}
	}
	for _, item := range m.items {
		if !item.IsHeading() {
			out = append(out, item)
		}
	}
	return out
}

func (m *Model) indexOf(id string) int {
	return slices.IndexFunc(m.items, func(it models.PlacedItem) bool {
		return it.InstanceID == id
	})
}

func cloneItems(items []models.PlacedItem) []models.PlacedItem {
	out := make([]models.PlacedItem, len(items))
	copy(out, items)
	return out
}
