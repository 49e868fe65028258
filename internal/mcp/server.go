// Package mcp provides a Model Context Protocol server for the syllabus
// pipeline.
//
// It exposes extraction, review and calendar export as MCP tools, and the
// stored syllabi as an MCP resource. The server is served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/syllabus/internal/dates"
	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/extract"
	"github.com/hurttlocker/syllabus/internal/ics"
	"github.com/hurttlocker/syllabus/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store        store.Store
	Orchestrator *extract.Orchestrator
	Dates        *dates.Normalizer
	Version      string // version string for MCP server info
}

// dbMu serializes tool calls that touch the database. mcp-go dispatches
// handlers concurrently and SQLite allows a single writer.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	orch := cfg.Orchestrator
	if orch == nil {
		orch = extract.NewOrchestrator()
	}
	n := cfg.Dates
	if n == nil {
		n = dates.New(dates.DefaultAnchor())
	}

	s := server.NewMCPServer(
		"Syllabus",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerExtractTool(s, orch, cfg.Store)
	if cfg.Store != nil {
		registerListTool(s, cfg.Store)
		registerEventsTool(s, cfg.Store)
		registerApproveTool(s, cfg.Store)
		registerUpdateTool(s, cfg.Store, n)
		registerExportTool(s, cfg.Store)
		registerSyllabiResource(s, cfg.Store)
	}
	return s
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, orch *extract.Orchestrator, st store.Store) {
	tool := mcp.NewTool("syllabus_extract",
		mcp.WithDescription("Extract dated events (exams, quizzes, homework, projects, lectures, office hours) from syllabus text. Returns normalized events with YYYY-MM-DD dates. Optionally saves the syllabus for review."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The syllabus text"),
		),
		mcp.WithString("label",
			mcp.Description("Document label, e.g. the course or file name. Defaults to 'mcp'."),
		),
		mcp.WithBoolean("save",
			mcp.Description("Store the syllabus and its events for review (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		label := req.GetString("label", "mcp")
		if strings.TrimSpace(label) == "" {
			label = "mcp"
		}

		res := orch.Extract(ctx, text, label)
		out := map[string]any{
			"method":   res.Method,
			"events":   res.Events,
			"attempts": res.Attempts,
		}

		if req.GetBool("save", false) {
			if st == nil {
				return mcp.NewToolResultError("storage is not configured"), nil
			}
			dbMu.Lock()
			defer dbMu.Unlock()
			syl, err := st.SaveSyllabus(ctx, store.SaveParams{
				Label:  label,
				Text:   res.Text,
				Method: res.Method,
				Events: res.Events,
			})
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("save error: %v", err)), nil
			}
			out["syllabus"] = syl
		}
		return jsonResult(out), nil
	})
}

func registerListTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("syllabus_list",
		mcp.WithDescription("List stored syllabi, newest first, with their event counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		list, err := st.ListSyllabi(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list error: %v", err)), nil
		}
		if list == nil {
			list = []*store.Syllabus{}
		}
		return jsonResult(list), nil
	})
}

func registerEventsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("syllabus_events",
		mcp.WithDescription("List stored events in date order, optionally for one syllabus and only approved ones."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("syllabus_id",
			mcp.Description("Restrict to one syllabus. Empty = all syllabi."),
		),
		mcp.WithBoolean("approved_only",
			mcp.Description("Only return approved events (default: false)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		events, err := st.ListEvents(ctx, store.EventFilter{
			SyllabusID:   req.GetString("syllabus_id", ""),
			ApprovedOnly: req.GetBool("approved_only", false),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("events error: %v", err)), nil
		}
		if events == nil {
			events = []*store.StoredEvent{}
		}
		return jsonResult(events), nil
	})
}

func registerApproveTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("syllabus_approve",
		mcp.WithDescription("Approve or reject an event, or every event of a syllabus. Only approved events are exported or synced by default."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Event id, or a syllabus id to apply to all of its events"),
		),
		mcp.WithBoolean("approved",
			mcp.Description("true to approve, false to reject (default: true)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil || strings.TrimSpace(id) == "" {
			return mcp.NewToolResultError("id is required"), nil
		}
		approved := req.GetBool("approved", true)

		ev, err := st.UpdateEvent(ctx, id, store.EventPatch{Approved: &approved})
		if err == nil {
			return jsonResult(map[string]any{"updated": 1, "event": ev}), nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("approve error: %v", err)), nil
		}

		if _, err := st.GetSyllabus(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("no event or syllabus with id %s", id)), nil
		}
		n, err := st.SetApproved(ctx, id, approved)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("approve error: %v", err)), nil
		}
		return jsonResult(map[string]any{"updated": n, "syllabusId": id}), nil
	})
}

func registerUpdateTool(s *server.MCPServer, st store.Store, n *dates.Normalizer) {
	tool := mcp.NewTool("syllabus_update_event",
		mcp.WithDescription("Correct an extracted event. Dates may be written loosely (\"Oct 3\", \"10/3 11:59pm\") and are normalized against the academic year."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Event id"),
		),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("date", mcp.Description("New date")),
		mcp.WithString("event_type",
			mcp.Description("New event type"),
			mcp.Enum(eventTypeNames()...),
		),
		mcp.WithString("location", mcp.Description("New location")),
		mcp.WithString("description", mcp.Description("New description")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}

		var patch store.EventPatch
		args := req.GetArguments()
		if _, ok := args["title"]; ok {
			v := req.GetString("title", "")
			patch.Title = &v
		}
		if _, ok := args["location"]; ok {
			v := req.GetString("location", "")
			patch.Location = &v
		}
		if _, ok := args["description"]; ok {
			v := req.GetString("description", "")
			patch.Description = &v
		}
		if raw := req.GetString("date", ""); raw != "" {
			r, ok := n.Parse(raw)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unrecognized date: %s", raw)), nil
			}
			d := r.String()
			patch.Date = &d
		}
		if raw := req.GetString("event_type", ""); raw != "" {
			t, ok := event.ParseEventType(raw)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown event type: %s", raw)), nil
			}
			patch.EventType = &t
		}

		ev, err := st.UpdateEvent(ctx, id, patch)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("update error: %v", err)), nil
		}
		return jsonResult(ev), nil
	})
}

func eventTypeNames() []string {
	names := make([]string, len(event.Types))
	for i, t := range event.Types {
		names[i] = string(t)
	}
	return names
}

func registerExportTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("syllabus_export_ics",
		mcp.WithDescription("Render a stored syllabus as an iCalendar (.ics) document."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("syllabus_id",
			mcp.Required(),
			mcp.Description("Syllabus id"),
		),
		mcp.WithBoolean("approved_only",
			mcp.Description("Only include approved events (default: true)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		id, err := req.RequireString("syllabus_id")
		if err != nil {
			return mcp.NewToolResultError("syllabus_id is required"), nil
		}
		syl, err := st.GetSyllabus(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export error: %v", err)), nil
		}
		stored, err := st.ListEvents(ctx, store.EventFilter{
			SyllabusID:   id,
			ApprovedOnly: req.GetBool("approved_only", true),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("export error: %v", err)), nil
		}
		events := make([]event.ExtractedEvent, len(stored))
		for i, e := range stored {
			events[i] = e.ExtractedEvent
		}
		return mcp.NewToolResultText(ics.Export(events, ics.Options{CalendarName: syl.Label})), nil
	})
}
