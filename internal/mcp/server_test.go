package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/syllabus/internal/event"
	"github.com/hurttlocker/syllabus/internal/store"
)

// helper: create a test store with one syllabus
func setupTestStore(t *testing.T) (store.Store, string) {
	t.Helper()
	s, err := store.NewStore(store.StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	syl, err := s.SaveSyllabus(context.Background(), store.SaveParams{
		Label:  "CS 101",
		Text:   "Midterm Exam: October 15\nQuiz 1 on 9/12",
		Method: "rules",
		Events: []event.ExtractedEvent{
			{ID: "ev-quiz", Title: "Quiz 1", Date: "2025-09-12", EventType: event.Quiz, Confidence: 0.8},
			{ID: "ev-exam", Title: "Midterm Exam", Date: "2025-10-15", EventType: event.Exam, Confidence: 0.8},
		},
	})
	if err != nil {
		t.Fatalf("saving test syllabus: %v", err)
	}
	return s, syl.ID
}

func TestNewServer(t *testing.T) {
	s, _ := setupTestStore(t)
	if srv := NewServer(ServerConfig{Store: s}); srv == nil {
		t.Fatal("NewServer returned nil")
	}
}

// callTool invokes an MCP tool through the JSON-RPC entry point.
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]interface{}) *mcplib.CallToolResult {
	t.Helper()

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      name,
			"arguments": args,
		},
	}))

	respBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	callResult := &mcplib.CallToolResult{IsError: resp.Result.IsError}
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			callResult.Content = append(callResult.Content, mcplib.NewTextContent(c.Text))
		}
	}
	return callResult
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func getTextContent(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content found")
	return ""
}

func TestExtractTool(t *testing.T) {
	srv := NewServer(ServerConfig{})

	result := callTool(t, srv, "syllabus_extract", map[string]interface{}{
		"text":  "Homework 1 due 9/5 at 11:59pm\nFinal exam December 10",
		"label": "cs101",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	var out struct {
		Method string                 `json:"method"`
		Events []event.ExtractedEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &out); err != nil {
		t.Fatalf("parsing extract result: %v", err)
	}
	if out.Method != "rules" {
		t.Errorf("method = %q, want rules", out.Method)
	}
	if len(out.Events) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(out.Events), out.Events)
	}
	if out.Events[0].Date != "2025-09-05T23:59:00" || out.Events[0].EventType != event.Homework {
		t.Errorf("unexpected first event: %+v", out.Events[0])
	}
	if out.Events[1].Date != "2025-12-10" || out.Events[1].EventType != event.Exam {
		t.Errorf("unexpected second event: %+v", out.Events[1])
	}
}

func TestExtractTool_Save(t *testing.T) {
	s, _ := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "syllabus_extract", map[string]interface{}{
		"text": "Project proposal due Oct 1",
		"save": true,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}

	list, err := s.ListSyllabi(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 stored syllabi, got %d", len(list))
	}
}

func TestExtractTool_SaveWithoutStore(t *testing.T) {
	srv := NewServer(ServerConfig{})
	result := callTool(t, srv, "syllabus_extract", map[string]interface{}{
		"text": "Quiz 9/12",
		"save": true,
	})
	if !result.IsError {
		t.Fatal("expected an error without a store")
	}
}

func TestExtractTool_MissingText(t *testing.T) {
	srv := NewServer(ServerConfig{})
	result := callTool(t, srv, "syllabus_extract", map[string]interface{}{})
	if !result.IsError {
		t.Fatal("expected error for missing text")
	}
}

func TestEventsTool(t *testing.T) {
	s, id := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "syllabus_events", map[string]interface{}{"syllabus_id": id})
	var events []store.StoredEvent
	if err := json.Unmarshal([]byte(getTextContent(t, result)), &events); err != nil {
		t.Fatalf("parsing events: %v", err)
	}
	if len(events) != 2 || events[0].ID != "ev-quiz" {
		t.Fatalf("unexpected events: %+v", events)
	}

	result = callTool(t, srv, "syllabus_events", map[string]interface{}{"approved_only": true})
	if text := strings.TrimSpace(getTextContent(t, result)); text != "[]" {
		t.Errorf("expected no approved events, got %s", text)
	}
}

func TestApproveTool_Event(t *testing.T) {
	s, _ := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "syllabus_approve", map[string]interface{}{"id": "ev-exam"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	ev, err := s.GetEvent(context.Background(), "ev-exam")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Approved {
		t.Error("event should be approved")
	}

	callTool(t, srv, "syllabus_approve", map[string]interface{}{"id": "ev-exam", "approved": false})
	ev, _ = s.GetEvent(context.Background(), "ev-exam")
	if ev.Approved {
		t.Error("event should be rejected")
	}
}

func TestApproveTool_Syllabus(t *testing.T) {
	s, id := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "syllabus_approve", map[string]interface{}{"id": id})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	if !strings.Contains(getTextContent(t, result), `"updated": 2`) {
		t.Errorf("expected 2 updated, got %s", getTextContent(t, result))
	}

	result = callTool(t, srv, "syllabus_approve", map[string]interface{}{"id": "missing"})
	if !result.IsError {
		t.Error("expected error for unknown id")
	}
}

func TestUpdateEventTool(t *testing.T) {
	s, _ := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := callTool(t, srv, "syllabus_update_event", map[string]interface{}{
		"id":         "ev-quiz",
		"date":       "Sept 19 at 2pm",
		"event_type": "exam",
		"location":   "Room 204",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", getTextContent(t, result))
	}
	ev, err := s.GetEvent(context.Background(), "ev-quiz")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Date != "2025-09-19T14:00:00" || ev.EventType != event.Exam || ev.Location != "Room 204" {
		t.Errorf("unexpected event after update: %+v", ev)
	}
	if ev.Title != "Quiz 1" {
		t.Errorf("title should be untouched, got %q", ev.Title)
	}

	result = callTool(t, srv, "syllabus_update_event", map[string]interface{}{"id": "ev-quiz", "date": "eventually"})
	if !result.IsError {
		t.Error("expected error for unparseable date")
	}
}

func TestExportTool(t *testing.T) {
	s, id := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	callTool(t, srv, "syllabus_approve", map[string]interface{}{"id": "ev-exam"})

	text := getTextContent(t, callTool(t, srv, "syllabus_export_ics", map[string]interface{}{"syllabus_id": id}))
	if !strings.HasPrefix(text, "BEGIN:VCALENDAR") {
		t.Fatalf("expected a calendar, got %q", text)
	}
	if n := strings.Count(text, "BEGIN:VEVENT"); n != 1 {
		t.Errorf("expected 1 approved event, got %d", n)
	}

	text = getTextContent(t, callTool(t, srv, "syllabus_export_ics", map[string]interface{}{
		"syllabus_id": id, "approved_only": false,
	}))
	if n := strings.Count(text, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("expected 2 events, got %d", n)
	}
}

func TestSyllabiResource(t *testing.T) {
	s, id := setupTestStore(t)
	srv := NewServer(ServerConfig{Store: s})

	result := srv.HandleMessage(context.Background(), mustMarshal(t, map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": "syllabus://syllabi"},
	}))
	raw, _ := json.Marshal(result)
	if !strings.Contains(string(raw), id) {
		t.Errorf("resource does not list syllabus %s: %s", id, raw)
	}
}
