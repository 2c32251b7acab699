// Package models defines the domain types for the preference center builder.
package models

import (
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValueType tags how an item's value is stored, defaulted and checked.
type ValueType string

// Value types.
const (
	ValueColor   ValueType = "color"
	ValueText    ValueType = "text"
	ValueSelect  ValueType = "select"
	ValueFile    ValueType = "file"
	ValueBoolean ValueType = "boolean"
)

// PreferenceKind identifies a communication channel toggle.
type PreferenceKind string

// Preference kinds.
const (
	PreferenceEmail PreferenceKind = "email"
	PreferenceSMS   PreferenceKind = "sms"
	PreferencePush  PreferenceKind = "push"
)

// KindHeading is the template kind whose items drive the page title.
const KindHeading = "heading"

// wireTypePreference is the "type" written for preference items in saved
// and exported documents.
const wireTypePreference = "preference"

// ItemTemplate is an immutable definition of a placeable control.
type ItemTemplate struct {
	Kind         string    `json:"kind"`
	Label        string    `json:"label"`
	ValueType    ValueType `json:"type"`
	Required     bool      `json:"required"`
	DefaultValue any       `json:"defaultValue"`
	Options      []string  `json:"options,omitempty"`
}

// PlacedItem is a template instance on the canvas.
type PlacedItem struct {
	InstanceID     string
	Kind           string
	Label          string
	ValueType      ValueType
	Required       bool
	DefaultValue   any
	PreferenceKind PreferenceKind
}

// IsHeading reports whether the item was placed from the heading template.
func (p PlacedItem) IsHeading() bool {
	return p.Kind == KindHeading
}

// IsPreference reports whether the item is a communication preference toggle.
func (p PlacedItem) IsPreference() bool {
	return p.PreferenceKind != ""
}

// Validate checks the fields a document must carry for an item to be placed.
func (p PlacedItem) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.InstanceID, validation.Required),
		validation.Field(&p.Kind, validation.Required),
		validation.Field(&p.Label, validation.Required),
		validation.Field(&p.ValueType, validation.Required,
			validation.In(ValueColor, ValueText, ValueSelect, ValueFile, ValueBoolean)),
		validation.Field(&p.PreferenceKind,
			validation.In(PreferenceEmail, PreferenceSMS, PreferencePush)),
	)
}

type placedItemJSON struct {
	ID             string         `json:"id"`
	Kind           string         `json:"kind,omitempty"`
	Label          string         `json:"label"`
	Type           string         `json:"type"`
	Required       bool           `json:"required"`
	DefaultValue   any            `json:"defaultValue"`
	PreferenceType PreferenceKind `json:"preferenceType,omitempty"`
}

// MarshalJSON writes the item in the document shape used by saved and
// exported configurations.
func (p PlacedItem) MarshalJSON() ([]byte, error) {
	typ := string(p.ValueType)
	if p.IsPreference() {
		typ = wireTypePreference
	}
	return json.Marshal(placedItemJSON{
		ID:             p.InstanceID,
		Kind:           p.Kind,
		Label:          p.Label,
		Type:           typ,
		Required:       p.Required,
		DefaultValue:   p.DefaultValue,
		PreferenceType: p.PreferenceKind,
	})
}

// UnmarshalJSON reads the document shape. Documents written before kinds
// were recorded derive the kind from the id prefix.
func (p *PlacedItem) UnmarshalJSON(data []byte) error {
	var raw placedItemJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	vt := ValueType(raw.Type)
	if raw.Type == wireTypePreference {
		vt = ValueBoolean
	}

	kind := raw.Kind
	if kind == "" {
		if raw.PreferenceType != "" {
			kind = wireTypePreference + "-" + string(raw.PreferenceType)
		} else {
			kind, _, _ = strings.Cut(raw.ID, "-")
		}
	}

	*p = PlacedItem{
		InstanceID:     raw.ID,
		Kind:           kind,
		Label:          raw.Label,
		ValueType:      vt,
		Required:       raw.Required,
		DefaultValue:   raw.DefaultValue,
		PreferenceKind: raw.PreferenceType,
	}
	return nil
}
