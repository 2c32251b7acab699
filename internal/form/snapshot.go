package form

import (
	"fmt"
	"maps"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/models"
)

// Snapshot is a self-contained copy of model state.
//
// For Restore, Items and PreferenceFlags are mandatory. A nil Values map
// means "no values recorded": every item starts blank. A nil Styles map
// keeps the model's current styles.
type Snapshot struct {
	Items           []models.PlacedItem
	Values          map[string]any
	Styles          map[string]string
	PreferenceFlags map[string]bool
}

// Snapshot returns a copy of the full model state.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		Items:           cloneItems(m.items),
		Values:          maps.Clone(m.values),
		Styles:          maps.Clone(m.styles),
		PreferenceFlags: maps.Clone(m.flags),
	}
}

// Restore replaces the model state with s. On error the model is unchanged.
func (m *Model) Restore(s Snapshot) error {
	if s.Items == nil {
		return fmt.Errorf("form: restore: missing items: %w", apperr.ErrInvalidSnapshot)
	}
	if s.PreferenceFlags == nil {
		return fmt.Errorf("form: restore: missing preference flags: %w", apperr.ErrInvalidSnapshot)
	}
	seen := make(map[string]struct{}, len(s.Items))
	for i, item := range s.Items {
		if item.InstanceID == "" {
			return fmt.Errorf("form: restore: item %d has no id: %w", i, apperr.ErrInvalidSnapshot)
		}
		if _, dup := seen[item.InstanceID]; dup {
			return fmt.Errorf("form: restore: duplicate id %q: %w", item.InstanceID, apperr.ErrInvalidSnapshot)
		}
		seen[item.InstanceID] = struct{}{}
	}

	values := make(map[string]any, len(s.Items))
	for _, item := range s.Items {
		b := catalog.BehaviorFor(item.ValueType)
		if v, ok := s.Values[item.InstanceID]; ok {
			values[item.InstanceID] = b.Coerce(v)
		} else {
			values[item.InstanceID] = b.Zero
		}
	}

	styles := m.styles
	if s.Styles != nil {
		styles = maps.Clone(m.defaultStyles)
		maps.Copy(styles, s.Styles)
	}

	m.items = cloneItems(s.Items)
	m.values = values
	m.errors = make(map[string]string)
	m.styles = styles
	m.flags = maps.Clone(s.PreferenceFlags)
	return nil
}
