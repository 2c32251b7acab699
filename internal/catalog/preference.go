package catalog

import "github.com/starford/prefcenter/internal/models"

type preferenceEntry struct {
	kind     models.PreferenceKind
	template models.ItemTemplate
}

var preferences = []preferenceEntry{
	{models.PreferenceEmail, preferenceTemplate(models.PreferenceEmail, "Email Notifications")},
	{models.PreferenceSMS, preferenceTemplate(models.PreferenceSMS, "SMS Notifications")},
	{models.PreferencePush, preferenceTemplate(models.PreferencePush, "Push Notifications")},
}

func preferenceTemplate(kind models.PreferenceKind, label string) models.ItemTemplate {
	return models.ItemTemplate{
		Kind:         "preference-" + string(kind),
		Label:        label,
		ValueType:    models.ValueBoolean,
		Required:     false,
		DefaultValue: false,
	}
}

// Adder places an item built from a template. *form.Model satisfies it.
type Adder interface {
	AddItem(t models.ItemTemplate, pref models.PreferenceKind) models.PlacedItem
}

// Registry is the fixed email/SMS/push preference catalog.
type Registry struct{}

// Preferences returns the preference kinds with their templates, in panel order.
func (Registry) Preferences() []models.ItemTemplate {
	out := make([]models.ItemTemplate, len(preferences))
	for i, p := range preferences {
		out[i] = p.template
	}
	return out
}

// Template returns the boolean template for kind.
func (Registry) Template(kind models.PreferenceKind) (models.ItemTemplate, bool) {
	for _, p := range preferences {
		if p.kind == kind {
			return p.template, true
		}
	}
	return models.ItemTemplate{}, false
}

// KindOf returns the preference kind whose template has templateKind.
func (Registry) KindOf(templateKind string) (models.PreferenceKind, bool) {
	for _, p := range preferences {
		if p.template.Kind == templateKind {
			return p.kind, true
		}
	}
	return "", false
}

// Instantiate places a new preference item of kind. Every call creates a
// new instance; instances of the same kind are not deduplicated.
func (r Registry) Instantiate(a Adder, kind models.PreferenceKind) (models.PlacedItem, bool) {
	t, ok := r.Template(kind)
	if !ok {
		return models.PlacedItem{}, false
	}
	return a.AddItem(t, kind), true
}
