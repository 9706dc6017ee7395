package vrc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers vrc tools on an MCP server.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerRunTool(srv)
	r.registerComparePageTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- run ---

func (r *Runner) registerRunTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vrc_run",
		Description: "Compare every configured page between staging and prod and return the aggregated summary.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	srv.AddTool(tool, func(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sum, err := r.Run(ctx)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		return textResult(sum)
	})
}

// --- compare_page ---

type comparePageReq struct {
	Path string `json:"path"`
}

func (r *Runner) registerComparePageTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "vrc_compare_page",
		Description: "Compare a single page path between staging and prod and return its result record.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Route path, e.g. /events"},
		}, []string{"path"}),
	}

	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args comparePageReq
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		if args.Path == "" {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("path is required"))
			return &res, nil
		}

		result := r.CompareOne(ctx, PageTarget{Path: args.Path})
		return textResult(result)
	})
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		var res mcp.CallToolResult
		res.SetError(fmt.Errorf("marshal: %w", err))
		return &res, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil
}
