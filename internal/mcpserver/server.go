// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the form builder as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/prefcenter/internal/catalog"
	"github.com/starford/prefcenter/internal/models"
	"github.com/starford/prefcenter/internal/session"
)

// DocumentFormatURI names the export document contract resource.
const DocumentFormatURI = "prefcenter://document-format"

// Server wraps the MCP server with form tools.
type Server struct {
	mcp       *server.MCPServer
	sessions  *session.Manager
	assetsDir string
}

// New creates a new MCP server with all form tools registered. Logo uploads
// are written under assetsDir.
func New(sessions *session.Manager, assetsDir string) *Server {
	s := &Server{sessions: sessions, assetsDir: assetsDir}

	s.mcp = server.NewMCPServer(
		"Preference Center",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	sessionArg := mcp.WithString("session", mcp.Description("Session id (default: \"default\")"))

	s.mcp.AddTool(mcp.NewTool("list_catalog",
		mcp.WithDescription("List the control and preference templates that can be placed on the form."),
	), s.listCatalog)

	s.mcp.AddTool(mcp.NewTool("get_form",
		mcp.WithDescription("Return the full state of a form: items, values, errors, styles and preference flags."),
		sessionArg,
	), s.getForm)

	s.mcp.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Place a new item. Give either template_kind (a control kind from list_catalog) "+
			"or preference_kind (email, sms or push)."),
		sessionArg,
		mcp.WithString("template_kind", mcp.Description("Control template kind, e.g. heading")),
		mcp.WithString("preference_kind", mcp.Description("Preference kind"), mcp.Enum("email", "sms", "push")),
	), s.addItem)

	s.mcp.AddTool(mcp.NewTool("remove_item",
		mcp.WithDescription("Remove an item by id."),
		sessionArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.removeItem)

	s.mcp.AddTool(mcp.NewTool("reorder_items",
		mcp.WithDescription("Move the item at position from to position to (zero-based)."),
		sessionArg,
		mcp.WithNumber("from", mcp.Required(), mcp.Description("Current position")),
		mcp.WithNumber("to", mcp.Required(), mcp.Description("New position")),
	), s.reorderItems)

	s.mcp.AddTool(mcp.NewTool("set_value",
		mcp.WithDescription("Set the value of an item. Preference items take true or false."),
		sessionArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value")),
	), s.setValue)

	s.mcp.AddTool(mcp.NewTool("set_style",
		mcp.WithDescription("Set a global style: background, formWidth, heading, headingColor, "+
			"inputLabelColor, buttonColor or buttonText."),
		sessionArg,
		mcp.WithString("key", mcp.Required(), mcp.Description("Style key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Style value")),
	), s.setStyle)

	s.mcp.AddTool(mcp.NewTool("toggle_preference",
		mcp.WithDescription("Flip a preference flag (email, sms, pushNotifications)."),
		sessionArg,
		mcp.WithString("flag", mcp.Required(), mcp.Description("Flag name")),
	), s.togglePreference)

	s.mcp.AddTool(mcp.NewTool("toggle_preview",
		mcp.WithDescription("Switch between edit and preview mode. Structure cannot change in preview mode."),
		sessionArg,
	), s.togglePreview)

	s.mcp.AddTool(mcp.NewTool("validate_form",
		mcp.WithDescription("Check that every required item has a value."),
		sessionArg,
	), s.validateForm)

	s.mcp.AddTool(mcp.NewTool("save_form",
		mcp.WithDescription("Validate and save the form configuration."),
		sessionArg,
	), s.saveForm)

	s.mcp.AddTool(mcp.NewTool("reset_form",
		mcp.WithDescription("Delete the saved configuration and empty the form."),
		sessionArg,
	), s.resetForm)

	s.mcp.AddTool(mcp.NewTool("export_form",
		mcp.WithDescription("Export the form as a JSON document. Values are not included."),
		sessionArg,
	), s.exportForm)

	s.mcp.AddTool(mcp.NewTool("import_form",
		mcp.WithDescription("Replace the form items and preference flags with an exported document. "+
			"Read the format via the "+DocumentFormatURI+" resource first."),
		sessionArg,
		mcp.WithString("document", mcp.Required(), mcp.Description("Export document JSON")),
	), s.importForm)

	s.mcp.AddTool(mcp.NewTool("upload_logo",
		mcp.WithDescription("Download an image (http(s) URL or base64 data URI) and set it as the value of a file item."),
		sessionArg,
		mcp.WithString("id", mcp.Required(), mcp.Description("File item id, e.g. the logo item")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
		mcp.WithString("filename", mcp.Description("File name to store under (optional)")),
	), s.uploadLogo)

	s.mcp.AddResource(
		mcp.NewResource(DocumentFormatURI, "Export Document Format",
			mcp.WithResourceDescription("Shape of the JSON document produced by export_form and accepted by import_form."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) controller(ctx context.Context, req mcp.CallToolRequest) (*session.Controller, error) {
	return s.sessions.Get(ctx, req.GetString("session", session.DefaultSessionID))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listCatalog(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"controls":         catalog.Controls(),
		"preferences":      catalog.Registry{}.Preferences(),
		"formWidthOptions": catalog.FormWidthOptions,
	}), nil
}

func (s *Server) getForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ctrl.View()), nil
}

func (s *Server) addItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := ctrl.Drop(session.Intent{
		TemplateKind:   req.GetString("template_kind", ""),
		PreferenceKind: models.PreferenceKind(req.GetString("preference_kind", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(item), nil
}

func (s *Server) removeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ctrl.Delete(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", id)), nil
}

func (s *Server) reorderItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireInt("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireInt("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ctrl.Reorder(from, to); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ctrl.View().Items), nil
}

func (s *Server) setValue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, ok := req.GetArguments()["value"]
	if !ok {
		return mcp.NewToolResultError("required argument \"value\" not found"), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ctrl.Edit(id, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ctrl.View().Values[id]), nil
}

func (s *Server) setStyle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := req.RequireString("value")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := ctrl.SetStyle(key, value); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(ctrl.View().Styles), nil
}

func (s *Server) togglePreference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flag, err := req.RequireString("flag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	on, err := ctrl.TogglePreference(flag)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %t", flag, on)), nil
}

func (s *Server) togglePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ctrl.TogglePreview() {
		return mcp.NewToolResultText("preview mode"), nil
	}
	return mcp.NewToolResultText("edit mode"), nil
}

func (s *Server) validateForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := ctrl.Validate()
	if res.OK() {
		return mcp.NewToolResultText("valid"), nil
	}
	return jsonResult(res.Errors), nil
}

func (s *Server) saveForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notice, err := ctrl.Save(ctx)
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		out, _ := json.Marshal(verr.Errors)
		return mcp.NewToolResultError(notice.Message + ": " + string(out)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(notice.Message), nil
	}
	return mcp.NewToolResultText(notice.Message), nil
}

func (s *Server) resetForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notice, err := ctrl.Reset(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(notice.Message), nil
}

func (s *Server) exportForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, _, err := ctrl.Export()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) importForm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctrl, err := s.controller(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notice, err := ctrl.Import(ctx, strings.NewReader(doc))
	if err != nil {
		msg := notice.Message
		if msg == "" {
			msg = err.Error()
		}
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(notice.Message), nil
}

func (s *Server) readDocumentFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DocumentFormatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
