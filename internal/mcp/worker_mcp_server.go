// Package mcp exposes the classification engine as MCP tools over stdio so
// assistants can sort and manage categories for a single local user.
package mcp

import (
	"context"
	"fmt"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	serverName       = "thread-classifier"
	maxToolThreads   = 500
	defaultToolLimit = 50
)

// Tools binds the classification service to one user.
type Tools struct {
	svc    in.ClassificationService
	userID uuid.UUID
}

func NewTools(svc in.ClassificationService, userID uuid.UUID) *Tools {
	return &Tools{svc: svc, userID: userID}
}

// NewServer creates an MCP server with every classification tool registered.
func NewServer(svc in.ClassificationService, userID uuid.UUID, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(serverName, version,
		mcpserver.WithToolCapabilities(true),
	)
	NewTools(svc, userID).Register(s)
	return s
}

// Serve blocks serving s on stdin/stdout.
func Serve(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}

// Register adds the tools to s.
func (t *Tools) Register(s *mcpserver.MCPServer) {
	s.AddTool(mcp.NewTool("classify_threads",
		mcp.WithDescription("Sort threads into the user's categories. Pass either threads or source."),
		mcp.WithString("threads",
			mcp.Description("JSON array of threads with id, subject, sender and snippet"),
		),
		mcp.WithString("source",
			mcp.Description("Name of a connected thread source to fetch from, e.g. gmail or imap"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum threads fetched from source (default 50)"),
		),
	), t.handleClassify)

	s.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List built-in and custom categories"),
	), t.handleListCategories)

	s.AddTool(mcp.NewTool("create_category",
		mcp.WithDescription("Create a custom category"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Category name, unique ignoring case")),
		mcp.WithString("description", mcp.Description("What belongs in the category; drives rule scoring")),
		mcp.WithString("color", mcp.Description("Hex color, e.g. #10b981")),
	), t.handleCreateCategory)

	s.AddTool(mcp.NewTool("delete_category",
		mcp.WithDescription("Delete a custom category and redistribute its threads"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Category id, e.g. finance")),
	), t.handleDeleteCategory)
}

func (t *Tools) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, _ := args["threads"].(string)
	source, _ := args["source"].(string)

	if (raw == "") == (source == "") {
		return mcp.NewToolResultError("provide exactly one of threads or source"), nil
	}

	var (
		result *domain.ClassificationResult
		err    error
	)
	if source != "" {
		limit := defaultToolLimit
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		result, err = t.svc.ClassifyFromSource(ctx, t.userID, source, limit)
	} else {
		var threads []domain.Thread
		if jerr := json.Unmarshal([]byte(raw), &threads); jerr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("threads is not a JSON array of threads: %v", jerr)), nil
		}
		if len(threads) > maxToolThreads {
			return mcp.NewToolResultError(fmt.Sprintf("at most %d threads per call", maxToolThreads)), nil
		}
		result, err = t.svc.Classify(ctx, t.userID, threads)
	}
	if err != nil {
		return toolError(ctx, "classify_threads", err), nil
	}
	return jsonResult(result)
}

func (t *Tools) handleListCategories(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categories, err := t.svc.ListCategories(ctx, t.userID)
	if err != nil {
		return toolError(ctx, "list_categories", err), nil
	}
	return jsonResult(categories)
}

func (t *Tools) handleCreateCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	description, _ := args["description"].(string)
	color, _ := args["color"].(string)

	created, err := t.svc.CreateCategory(ctx, t.userID, in.CreateCategoryRequest{
		Name:        name,
		Description: description,
		Color:       color,
	})
	if err != nil {
		return toolError(ctx, "create_category", err), nil
	}
	return jsonResult(created)
}

func (t *Tools) handleDeleteCategory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := request.GetArguments()["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	result, err := t.svc.DeleteCategory(ctx, t.userID, id)
	if err != nil {
		return toolError(ctx, "delete_category", err), nil
	}
	return jsonResult(result)
}

// toolError reports err to the client in the same code/message shape the
// HTTP API uses. Internal errors are logged and masked.
func toolError(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	appErr := apperr.FromDomain(err)
	if appErr.Status >= 500 {
		logger.WithContext(ctx).WithError(err).WithField("tool", tool).Error("tool failed")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", appErr.Code, appErr.Message))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
