package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/prefcenter/internal/apperr"
	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/form"
	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/storage"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID(kind string) string {
	s.n++
	return fmt.Sprintf("%s-%d", kind, s.n)
}

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (brokenStore) Put(context.Context, string, []byte) error   { return errors.New("disk gone") }
func (brokenStore) Delete(context.Context, string) error        { return errors.New("disk gone") }
func (brokenStore) Close() error                                { return nil }

func sampleModel(t *testing.T) *form.Model {
	t.Helper()
	m := form.New(form.WithIDGenerator(&seqIDs{}))
	for _, kind := range []string{catalog.KindHeading, catalog.KindBackground, catalog.KindLogo} {
		tpl, ok := catalog.Lookup(kind)
		if !ok {
			t.Fatalf("template %q missing", kind)
		}
		m.AddItem(tpl, "")
	}
	p, _ := (catalog.Registry{}).Instantiate(m, models.PreferenceEmail)
	m.SetValue(p.InstanceID, true)
	m.SetValue("heading-1", "Your preferences")
	m.TogglePreferenceFlag(form.FlagSMS)
	return m
}

func TestLoadEmptyReturnsNotFound(t *testing.T) {
	g := NewGateway(storage.NewMemory())
	_, err := g.Load(context.Background())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(storage.NewMemory())
	m := sampleModel(t)

	if err := g.Save(ctx, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	snap, err := g.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(m.Items(), snap.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.PreferenceFlags(), snap.PreferenceFlags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	if snap.Values != nil {
		t.Errorf("values returned without restoreValues: %v", snap.Values)
	}
}

func TestSaveWritesValuesUnderWellKnownKey(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	g := NewGateway(store)
	if err := g.Save(ctx, sampleModel(t)); err != nil {
		t.Fatal(err)
	}
	raw, err := store.Get(ctx, "formConfiguration")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"formItems", "preferences", "formValues", "formStyles"} {
		if _, ok := doc[field]; !ok {
			t.Errorf("stored document missing %q", field)
		}
	}
}

func TestLoadWithRestoreValues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	m := sampleModel(t)
	if err := NewGateway(store).Save(ctx, m); err != nil {
		t.Fatal(err)
	}

	snap, err := NewGateway(store, WithRestoreValues(true)).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	restored := form.New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if diff := cmp.Diff(m.Snapshot(), restored.Snapshot()); diff != "" {
		t.Errorf("restored model mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWithoutRestoreValuesBlanksValues(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(storage.NewMemory())
	if err := g.Save(ctx, sampleModel(t)); err != nil {
		t.Fatal(err)
	}
	snap, err := g.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	restored := form.New()
	if err := restored.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if v, _ := restored.Value("heading-1"); v != "" {
		t.Errorf("heading value = %v, want blank", v)
	}
}

func TestLoadCorruptState(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"not json":      `{"formItems": [`,
		"missing items": `{"preferences": {"email": true}}`,
		"bad item":      `{"formItems": [{"id": "", "label": "x", "type": "text"}], "preferences": {}}`,
	}
	for name, raw := range cases {
		store := storage.NewMemory()
		_ = store.Put(ctx, DefaultKey, []byte(raw))
		_, err := NewGateway(store).Load(ctx)
		if !errors.Is(err, apperr.ErrCorruptState) {
			t.Errorf("%s: err = %v, want ErrCorruptState", name, err)
		}
	}
}

func TestStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(brokenStore{})
	if err := g.Save(ctx, sampleModel(t)); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Save err = %v, want ErrStorageUnavailable", err)
	}
	if _, err := g.Load(ctx); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Load err = %v, want ErrStorageUnavailable", err)
	}
	if err := g.Clear(ctx); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Errorf("Clear err = %v, want ErrStorageUnavailable", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(storage.NewMemory(), WithKey("formConfiguration.s1"))
	_ = g.Save(ctx, sampleModel(t))
	if err := g.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := g.Load(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := g.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	g := NewGateway(storage.NewMemory(), WithClock(func() time.Time { return fixed }))
	m := sampleModel(t)

	data, name, err := g.ExportDocument(m)
	if err != nil {
		t.Fatalf("ExportDocument: %v", err)
	}
	if name != "form-config-2024-03-09.json" {
		t.Errorf("filename = %q", name)
	}
	if !strings.Contains(string(data), `"exportDate": "2024-03-09T14:30:00.000Z"`) {
		t.Errorf("export date missing or malformed:\n%s", data)
	}
	if strings.Contains(string(data), "formValues") {
		t.Error("export must not contain values")
	}

	snap, err := g.ImportDocument(data)
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	if diff := cmp.Diff(m.Items(), snap.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.PreferenceFlags(), snap.PreferenceFlags); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	if snap.Values != nil {
		t.Errorf("import must not carry values, got %v", snap.Values)
	}

	restored := form.New()
	if err := restored.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if v, _ := restored.Value("heading-1"); v != "" {
		t.Errorf("heading value survived import: %v", v)
	}
}

func TestImportInvalidDocument(t *testing.T) {
	g := NewGateway(storage.NewMemory())
	cases := map[string]string{
		"garbage":       `not json`,
		"missing items": `{"preferences": {"email": true}}`,
		"null items":    `{"formItems": null}`,
		"unknown type":  `{"formItems": [{"id": "x-1", "label": "X", "type": "slider"}]}`,
		"duplicate ids": `{"formItems": [{"id": "x-1", "label": "X", "type": "text"}, {"id": "x-1", "label": "X", "type": "text"}]}`,
		"bad flags":     `{"formItems": [], "preferences": {"email": "yes"}}`,
	}
	for name, raw := range cases {
		if _, err := g.ImportDocument([]byte(raw)); !errors.Is(err, apperr.ErrInvalidDocument) {
			t.Errorf("%s: err = %v, want ErrInvalidDocument", name, err)
		}
	}
}

func TestImportEmptyItemsDefaultsFlags(t *testing.T) {
	snap, err := NewGateway(storage.NewMemory()).ImportDocument([]byte(`{"formItems": []}`))
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	if len(snap.Items) != 0 {
		t.Errorf("items = %v", snap.Items)
	}
	if diff := cmp.Diff(form.DefaultPreferenceFlags(), snap.PreferenceFlags); diff != "" {
		t.Errorf("flags (-want +got):\n%s", diff)
	}
}

func TestImportLegacyDocument(t *testing.T) {
	// Written by the browser builder: no "kind", preference items
	// typed "preference".
	raw := `{
  "formItems": [
    {"id": "heading-1700000000000", "label": "Heading", "type": "text", "defaultValue": "", "required": true},
    {"id": "preference-email-1700000000001-1700000000002", "label": "Email Notifications",
     "type": "preference", "preferenceType": "email", "defaultValue": false}
  ],
  "preferences": {"email": true, "sms": false, "pushNotifications": false},
  "exportDate": "2023-11-14T22:13:20.000Z"
}`
	snap, err := NewGateway(storage.NewMemory()).ImportDocument([]byte(raw))
	if err != nil {
		t.Fatalf("ImportDocument: %v", err)
	}
	want := []models.PlacedItem{
		{InstanceID: "heading-1700000000000", Kind: "heading", Label: "Heading", ValueType: models.ValueText, Required: true, DefaultValue: ""},
		{InstanceID: "preference-email-1700000000001-1700000000002", Kind: "preference-email", Label: "Email Notifications",
			ValueType: models.ValueBoolean, DefaultValue: false, PreferenceKind: models.PreferenceEmail},
	}
	if diff := cmp.Diff(want, snap.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if !snap.Items[0].IsHeading() {
		t.Error("legacy heading not recognized")
	}
}
