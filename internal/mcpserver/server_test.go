package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/session"
	"github.com/starford/prefcenter/internal/storage"
	"github.com/starford/prefcenter/internal/testutil"
)

// pngBase64 is a 1x1 transparent PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

const pngDataURI = "data:image/png;base64," + pngBase64

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	assets := t.TempDir()
	mgr := session.NewManager(storage.NewMemory(), session.ManagerConfig{Logger: testutil.Logger()})
	return New(mgr, assets), assets
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_catalog":
		result, err = srv.listCatalog(ctx, req)
	case "get_form":
		result, err = srv.getForm(ctx, req)
	case "add_item":
		result, err = srv.addItem(ctx, req)
	case "remove_item":
		result, err = srv.removeItem(ctx, req)
	case "reorder_items":
		result, err = srv.reorderItems(ctx, req)
	case "set_value":
		result, err = srv.setValue(ctx, req)
	case "set_style":
		result, err = srv.setStyle(ctx, req)
	case "toggle_preference":
		result, err = srv.togglePreference(ctx, req)
	case "toggle_preview":
		result, err = srv.togglePreview(ctx, req)
	case "validate_form":
		result, err = srv.validateForm(ctx, req)
	case "save_form":
		result, err = srv.saveForm(ctx, req)
	case "reset_form":
		result, err = srv.resetForm(ctx, req)
	case "export_form":
		result, err = srv.exportForm(ctx, req)
	case "import_form":
		result, err = srv.importForm(ctx, req)
	case "upload_logo":
		result, err = srv.uploadLogo(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func addItem(t *testing.T, srv *Server, args map[string]interface{}) models.PlacedItem {
	t.Helper()
	r := callTool(t, srv, "add_item", args)
	if r.IsError {
		t.Fatalf("add_item error: %s", resultText(r))
	}
	var item models.PlacedItem
	if err := json.Unmarshal([]byte(resultText(r)), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	return item
}

func getForm(t *testing.T, srv *Server, sid string) session.View {
	t.Helper()
	args := map[string]interface{}{}
	if sid != "" {
		args["session"] = sid
	}
	var v session.View
	if err := json.Unmarshal([]byte(resultText(callTool(t, srv, "get_form", args))), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestListCatalog(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "list_catalog", map[string]interface{}{}))
	for _, want := range []string{`"heading"`, `"logo"`, `"preference-sms"`, `"800px"`} {
		if !strings.Contains(text, want) {
			t.Errorf("catalog missing %s", want)
		}
	}
}

func TestAddEditAndRemove(t *testing.T) {
	srv, _ := testServer(t)

	heading := addItem(t, srv, map[string]interface{}{"template_kind": "heading"})
	if heading.Kind != "heading" {
		t.Errorf("kind = %q", heading.Kind)
	}
	pref := addItem(t, srv, map[string]interface{}{"preference_kind": "email"})
	if !pref.IsPreference() {
		t.Errorf("expected preference item, got %+v", pref)
	}

	r := callTool(t, srv, "set_value", map[string]interface{}{"id": heading.InstanceID, "value": "Stay in touch"})
	if r.IsError {
		t.Fatalf("set_value: %s", resultText(r))
	}
	r = callTool(t, srv, "set_value", map[string]interface{}{"id": pref.InstanceID, "value": true})
	if r.IsError {
		t.Fatalf("set_value bool: %s", resultText(r))
	}

	v := getForm(t, srv, "")
	if v.Title != "Stay in touch" {
		t.Errorf("title = %q", v.Title)
	}
	if v.Values[pref.InstanceID] != true {
		t.Errorf("preference value = %v", v.Values[pref.InstanceID])
	}

	r = callTool(t, srv, "remove_item", map[string]interface{}{"id": heading.InstanceID})
	if text := resultText(r); text != "removed: "+heading.InstanceID {
		t.Errorf("remove result = %q", text)
	}
	if n := len(getForm(t, srv, "").Items); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestAddUnknownTemplate(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "add_item", map[string]interface{}{"template_kind": "carousel"})
	if !r.IsError {
		t.Error("expected error for unknown template")
	}
	r = callTool(t, srv, "add_item", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when no kind is given")
	}
}

func TestSetValueUnknownItem(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "set_value", map[string]interface{}{"id": "nope", "value": "x"})
	if !r.IsError {
		t.Error("expected error for unknown item")
	}
	r = callTool(t, srv, "set_value", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing value")
	}
}

func TestReorderItems(t *testing.T) {
	srv, _ := testServer(t)
	a := addItem(t, srv, map[string]interface{}{"template_kind": "background"})
	b := addItem(t, srv, map[string]interface{}{"template_kind": "buttonText"})

	r := callTool(t, srv, "reorder_items", map[string]interface{}{"from": float64(1), "to": float64(0)})
	if r.IsError {
		t.Fatalf("reorder: %s", resultText(r))
	}
	items := getForm(t, srv, "").Items
	if items[0].InstanceID != b.InstanceID || items[1].InstanceID != a.InstanceID {
		t.Errorf("order = %s, %s", items[0].InstanceID, items[1].InstanceID)
	}

	r = callTool(t, srv, "reorder_items", map[string]interface{}{"from": float64(5), "to": float64(0)})
	if !r.IsError {
		t.Error("expected error for out-of-range reorder")
	}
}

func TestStylesAndPreferences(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "set_style", map[string]interface{}{"key": "buttonColor", "value": "#ff0000"})
	if r.IsError {
		t.Fatalf("set_style: %s", resultText(r))
	}
	if got := getForm(t, srv, "").Styles["buttonColor"]; got != "#ff0000" {
		t.Errorf("buttonColor = %q", got)
	}

	r = callTool(t, srv, "toggle_preference", map[string]interface{}{"flag": "sms"})
	if text := resultText(r); text != "sms: true" {
		t.Errorf("toggle result = %q", text)
	}
}

func TestPreviewBlocksStructure(t *testing.T) {
	srv, _ := testServer(t)
	item := addItem(t, srv, map[string]interface{}{"template_kind": "heading"})

	if text := resultText(callTool(t, srv, "toggle_preview", map[string]interface{}{})); text != "preview mode" {
		t.Errorf("toggle_preview = %q", text)
	}
	if r := callTool(t, srv, "add_item", map[string]interface{}{"template_kind": "logo"}); !r.IsError {
		t.Error("add_item allowed in preview mode")
	}
	if r := callTool(t, srv, "set_value", map[string]interface{}{"id": item.InstanceID, "value": "Hi"}); r.IsError {
		t.Errorf("set_value rejected in preview mode: %s", resultText(r))
	}
	if text := resultText(callTool(t, srv, "toggle_preview", map[string]interface{}{})); text != "edit mode" {
		t.Errorf("toggle_preview = %q", text)
	}
}

func TestValidateAndSave(t *testing.T) {
	srv, _ := testServer(t)
	item := addItem(t, srv, map[string]interface{}{"template_kind": "heading"})

	r := callTool(t, srv, "validate_form", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, item.InstanceID) {
		t.Errorf("validate should report %s, got %q", item.InstanceID, text)
	}

	r = callTool(t, srv, "save_form", map[string]interface{}{})
	if !r.IsError || !strings.Contains(resultText(r), session.MsgRequiredFields) {
		t.Errorf("save with blank heading = %q", resultText(r))
	}

	callTool(t, srv, "set_value", map[string]interface{}{"id": item.InstanceID, "value": "Preferences"})
	if text := resultText(callTool(t, srv, "validate_form", map[string]interface{}{})); text != "valid" {
		t.Errorf("validate = %q", text)
	}
	r = callTool(t, srv, "save_form", map[string]interface{}{})
	if r.IsError || resultText(r) != session.MsgSaved {
		t.Errorf("save = %q", resultText(r))
	}

	r = callTool(t, srv, "reset_form", map[string]interface{}{})
	if resultText(r) != session.MsgReset {
		t.Errorf("reset = %q", resultText(r))
	}
	if n := len(getForm(t, srv, "").Items); n != 0 {
		t.Errorf("items after reset = %d", n)
	}
}

func TestExportImportAcrossSessions(t *testing.T) {
	srv, _ := testServer(t)
	addItem(t, srv, map[string]interface{}{"template_kind": "background"})
	addItem(t, srv, map[string]interface{}{"preference_kind": "push"})

	doc := resultText(callTool(t, srv, "export_form", map[string]interface{}{}))
	if !strings.Contains(doc, `"formItems"`) || !strings.Contains(doc, `"exportDate"`) {
		t.Fatalf("export = %s", doc)
	}

	r := callTool(t, srv, "import_form", map[string]interface{}{"session": "copy", "document": doc})
	if r.IsError || resultText(r) != session.MsgImported {
		t.Fatalf("import = %q", resultText(r))
	}
	if n := len(getForm(t, srv, "copy").Items); n != 2 {
		t.Errorf("imported items = %d, want 2", n)
	}

	r = callTool(t, srv, "import_form", map[string]interface{}{"session": "copy", "document": `{"formItems": [`})
	if !r.IsError || resultText(r) != session.MsgImportFailed {
		t.Errorf("bad import = %q", resultText(r))
	}
	if n := len(getForm(t, srv, "copy").Items); n != 2 {
		t.Errorf("items after failed import = %d, want 2", n)
	}
}

func TestInvalidSession(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_form", map[string]interface{}{"session": "../etc"})
	if !r.IsError {
		t.Error("expected error for invalid session id")
	}
}

func TestUploadLogoDataURI(t *testing.T) {
	srv, assets := testServer(t)
	logo := addItem(t, srv, map[string]interface{}{"template_kind": "logo"})

	r := callTool(t, srv, "upload_logo", map[string]interface{}{
		"id":       logo.InstanceID,
		"url":      pngDataURI,
		"filename": "brand logo.png",
	})
	if r.IsError {
		t.Fatalf("upload_logo: %s", resultText(r))
	}
	var res logoResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Filename != "brand_logo.png" || res.URL != "/assets/default/brand_logo.png" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(assets, "default", "brand_logo.png")); err != nil {
		t.Errorf("logo not written: %v", err)
	}
	if got := getForm(t, srv, "").Values[logo.InstanceID]; got != "brand_logo.png" {
		t.Errorf("logo value = %v", got)
	}
}

func TestUploadLogoRejects(t *testing.T) {
	srv, _ := testServer(t)
	heading := addItem(t, srv, map[string]interface{}{"template_kind": "heading"})
	logo := addItem(t, srv, map[string]interface{}{"template_kind": "logo"})

	cases := map[string]map[string]interface{}{
		"not a file item":  {"id": heading.InstanceID, "url": pngDataURI},
		"not an image":     {"id": logo.InstanceID, "url": "data:application/pdf;base64,JVBERi0xLjQ="},
		"bad extension":    {"id": logo.InstanceID, "url": pngDataURI, "filename": "logo.exe"},
		"content mismatch": {"id": logo.InstanceID, "url": "data:image/gif;base64," + pngBase64},
		"scheme":           {"id": logo.InstanceID, "url": "file:///etc/passwd"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if r := callTool(t, srv, "upload_logo", args); !r.IsError {
				t.Errorf("expected error, got %q", resultText(r))
			}
		})
	}
}

func TestUploadLogoHTTP(t *testing.T) {
	blockLoopback = false
	t.Cleanup(func() { blockLoopback = true })

	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="1" height="1"></svg>`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(svg))
	}))
	defer ts.Close()

	srv, assets := testServer(t)
	logo := addItem(t, srv, map[string]interface{}{"template_kind": "logo", "session": "brand"})

	r := callTool(t, srv, "upload_logo", map[string]interface{}{
		"session": "brand",
		"id":      logo.InstanceID,
		"url":     ts.URL + "/images/mark.svg",
	})
	if r.IsError {
		t.Fatalf("upload_logo: %s", resultText(r))
	}
	data, err := os.ReadFile(filepath.Join(assets, "brand", "mark.svg"))
	if err != nil || string(data) != svg {
		t.Errorf("stored logo = %q, %v", data, err)
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "169.254.169.254", "metadata.google.internal"} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("%s should be blocked", host)
		}
	}
	if err := checkBlockedHost("203.0.113.7"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}

func TestDocumentFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readDocumentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != DocumentFormatURI || !strings.Contains(tc.Text, "formItems") {
		t.Errorf("resource = %+v", contents[0])
	}
}
