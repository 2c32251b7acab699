// Package catalog holds the static control templates, the preference
// registry and the per-value-type behavior table.
package catalog

import (
	"slices"

	"github.com/starford/prefcenter/internal/models"
)

// Control template kinds.
const (
	KindBackground   = "background"
	KindFormWidth    = "formWidth"
	KindHeading      = models.KindHeading
	KindLogo         = "logo"
	KindHeadingColor = "headingColor"
	KindInputLabel   = "inputLabel"
	KindButtonColor  = "buttonColor"
	KindButtonText   = "buttonText"
)

// FormWidthOptions are the selectable widths for the formWidth control.
var FormWidthOptions = []string{"400px", "600px", "800px"}

var controls = []models.ItemTemplate{
	{Kind: KindBackground, Label: "Background Color", ValueType: models.ValueColor, DefaultValue: "#ffffff", Required: true},
	{Kind: KindFormWidth, Label: "Form Width", ValueType: models.ValueSelect, DefaultValue: "400px", Required: true, Options: FormWidthOptions},
	{Kind: KindHeading, Label: "Heading", ValueType: models.ValueText, DefaultValue: "", Required: true},
	{Kind: KindLogo, Label: "Logo Image", ValueType: models.ValueFile, DefaultValue: "", Required: false},
	{Kind: KindHeadingColor, Label: "Heading Font Color", ValueType: models.ValueColor, DefaultValue: "#000000", Required: true},
	{Kind: KindInputLabel, Label: "Input Label Color", ValueType: models.ValueColor, DefaultValue: "#4a5568", Required: true},
	{Kind: KindButtonColor, Label: "Submit Button Color", ValueType: models.ValueColor, DefaultValue: "#4299e1", Required: true},
	{Kind: KindButtonText, Label: "Submit Button Text", ValueType: models.ValueText, DefaultValue: "Submit", Required: true},
}

// Controls returns the control templates in sidebar order.
func Controls() []models.ItemTemplate {
	out := make([]models.ItemTemplate, len(controls))
	for i, t := range controls {
		out[i] = clone(t)
	}
	return out
}

// Lookup finds a control or preference template by kind.
func Lookup(kind string) (models.ItemTemplate, bool) {
	for _, t := range controls {
		if t.Kind == kind {
			return clone(t), true
		}
	}
	for _, p := range preferences {
		if p.template.Kind == kind {
			return clone(p.template), true
		}
	}
	return models.ItemTemplate{}, false
}

func clone(t models.ItemTemplate) models.ItemTemplate {
	t.Options = slices.Clone(t.Options)
	return t
}
