package persistence

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/models"
)

// exportDateLayout matches the millisecond ISO-8601 form browsers produce.
const exportDateLayout = "2006-01-02T15:04:05.000Z07:00"

// exportDocument is the portable configuration a user downloads. Item
// values are not part of it.
type exportDocument struct {
	FormItems   []models.PlacedItem `json:"formItems"`
	Preferences map[string]bool     `json:"preferences"`
	ExportDate  string              `json:"exportDate"`
}

type importDocument struct {
	FormItems   []models.PlacedItem `json:"formItems"`
	Preferences map[string]bool     `json:"preferences"`
}

func (d importDocument) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.FormItems, validation.NotNil),
	)
}

// ExportDocument renders m as an indented JSON document and suggests a
// file name derived from the current date.
func (g *Gateway) ExportDocument(m *form.Model) ([]byte, string, error) {
	now := g.now().UTC()
	snap := m.Snapshot()
	data, err := json.MarshalIndent(exportDocument{
		FormItems:   snap.Items,
		Preferences: snap.PreferenceFlags,
		ExportDate:  now.Format(exportDateLayout),
	}, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("persistence: export: %w", err)
	}
	return data, "form-config-" + now.Format("2006-01-02") + ".json", nil
}

// ImportDocument parses an exported document into a snapshot holding items
// and preference flags only. Callers pass the result to Model.Restore.
// A document without preferences gets the default flags.
func (g *Gateway) ImportDocument(data []byte) (form.Snapshot, error) {
	var doc importDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return form.Snapshot{}, fmt.Errorf("persistence: import: %w: %w", apperr.ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return form.Snapshot{}, fmt.Errorf("persistence: import: %w: %w", apperr.ErrInvalidDocument, err)
	}

	seen := make(map[string]struct{}, len(doc.FormItems))
	for _, item := range doc.FormItems {
		if _, dup := seen[item.InstanceID]; dup {
			return form.Snapshot{}, fmt.Errorf("persistence: import: duplicate id %q: %w", item.InstanceID, apperr.ErrInvalidDocument)
		}
		seen[item.InstanceID] = struct{}{}
	}

	flags := doc.Preferences
	if flags == nil {
		flags = form.DefaultPreferenceFlags()
	}
	return form.Snapshot{
		Items:           doc.FormItems,
		PreferenceFlags: flags,
	}, nil
}
