// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz board tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/annot"
	"github.com/starford/dagaz/internal/export"
	"github.com/starford/dagaz/internal/models"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp        *server.MCPServer
	store      *annot.Store
	compositor *export.Compositor
}

// New creates a new MCP server with all Dagaz tools registered. compositor
// may be nil, in which case export_board reports an error.
func New(store *annot.Store, compositor *export.Compositor) *Server {
	s := &Server{store: store, compositor: compositor}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_annotations",
		mcp.WithDescription("List every board annotation in draw order as JSON."),
	), s.listAnnotations)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add a sticky note to the board, anchored to a calendar date."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Anchor date in YYYY-MM-DD form")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithNumber("y", mcp.Description("Vertical position in board pixels (default 40)")),
		mcp.WithNumber("width", mcp.Description("Note width in pixels (default 160)")),
		mcp.WithNumber("height", mcp.Description("Note height in pixels (default 90)")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("remove_annotation",
		mcp.WithDescription("Remove an annotation from the board by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Annotation id")),
	), s.removeAnnotation)

	s.mcp.AddTool(mcp.NewTool("export_board",
		mcp.WithDescription("Export the board as a PNG image, returned base64-encoded."),
		mcp.WithNumber("width", mcp.Description("Viewport width in pixels (default 1200)")),
		mcp.WithNumber("scroll_left", mcp.Description("Horizontal scroll override in pixels")),
		mcp.WithBoolean("include_annotations", mcp.Description("Render the annotation layer (default true)")),
		mcp.WithBoolean("include_dependencies", mcp.Description("Render dependency curves (default true)")),
	), s.exportBoard)

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

func (s *Server) listAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.store.Annotations()
	if items == nil {
		items = []models.Annotation{}
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateStr, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date %q: want YYYY-MM-DD", dateStr)), nil
	}

	a := models.Annotation{
		ID:       uuid.NewString(),
		Kind:     models.KindNote,
		Date:     date,
		Y:        req.GetFloat("y", 40),
		Width:    req.GetFloat("width", 160),
		Height:   req.GetFloat("height", 90),
		Text:     text,
		Fill:     annot.RandomPaletteColor(),
		Stroke:   "#64748b",
		FontSize: 13,
	}
	if err := s.store.Add(a); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", a.ID)), nil
}

func (s *Server) removeAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.store.Remove(id) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed: %s", id)), nil
}

func (s *Server) exportBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.compositor == nil {
		return mcp.NewToolResultError("export is not configured"), nil
	}
	opts := export.Options{
		Width:               req.GetFloat("width", 1200),
		IncludeAnnotations:  req.GetBool("include_annotations", true),
		IncludeDependencies: req.GetBool("include_dependencies", true),
	}
	if v := req.GetFloat("scroll_left", -1); v >= 0 {
		opts.ScrollLeft = &v
	}
	res, err := s.compositor.Export(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(res.Bytes)), nil
}
