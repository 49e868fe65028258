package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/syllabus/internal/store"
)

// recentLimit caps the syllabi listed by the resource.
const recentLimit = 20

func registerSyllabiResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"syllabus://syllabi",
		"Stored Syllabi",
		mcp.WithResourceDescription("The most recently stored syllabi with approval progress."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		list, err := st.ListSyllabi(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing syllabi: %w", err)
		}
		if len(list) > recentLimit {
			list = list[:recentLimit]
		}

		type syllabusInfo struct {
			ID       string `json:"id"`
			Label    string `json:"label"`
			Method   string `json:"method"`
			Events   int    `json:"events"`
			Approved int    `json:"approved"`
			Created  string `json:"created"`
		}

		out := make([]syllabusInfo, 0, len(list))
		for _, syl := range list {
			approved, err := st.ListEvents(ctx, store.EventFilter{SyllabusID: syl.ID, ApprovedOnly: true})
			if err != nil {
				return nil, fmt.Errorf("listing approved events: %w", err)
			}
			out = append(out, syllabusInfo{
				ID:       syl.ID,
				Label:    syl.Label,
				Method:   syl.Method,
				Events:   syl.EventCount,
				Approved: len(approved),
				Created:  syl.CreatedAt.Format("2006-01-02 15:04"),
			})
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
