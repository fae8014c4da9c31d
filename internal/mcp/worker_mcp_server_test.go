package mcp

import (
	"context"
	"testing"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	in.ClassificationService

	classified []domain.Thread
	source     string
	limit      int
	created    in.CreateCategoryRequest
	deleted    string
	err        error
}

func (f *fakeService) Classify(_ context.Context, _ uuid.UUID, threads []domain.Thread) (*domain.ClassificationResult, error) {
	f.classified = threads
	if f.err != nil {
		return nil, f.err
	}
	p := domain.NewPartition(domain.BuiltinCategories())
	for _, t := range threads {
		p.Assign(domain.CategoryCanWait, t)
	}
	return &domain.ClassificationResult{RunID: "run-1", Partition: p}, nil
}

func (f *fakeService) ClassifyFromSource(_ context.Context, _ uuid.UUID, source string, limit int) (*domain.ClassificationResult, error) {
	f.source, f.limit = source, limit
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ClassificationResult{RunID: "run-2"}, nil
}

func (f *fakeService) ListCategories(context.Context, uuid.UUID) ([]domain.Category, error) {
	return domain.BuiltinCategories(), f.err
}

func (f *fakeService) CreateCategory(_ context.Context, _ uuid.UUID, req in.CreateCategoryRequest) (*domain.Category, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Category{ID: domain.DeriveCategoryID(req.Name), Name: req.Name, IsCustom: true}, nil
}

func (f *fakeService) DeleteCategory(_ context.Context, _ uuid.UUID, id string) (*domain.DeleteResult, error) {
	f.deleted = id
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DeleteResult{Deleted: domain.Category{ID: id}, ReassignedCount: 2}, nil
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleClassify(t *testing.T) {
	threads, err := json.Marshal([]domain.Thread{{ID: "t1", Subject: "hello"}})
	require.NoError(t, err)

	tests := []struct {
		name       string
		args       map[string]any
		wantError  bool
		wantSource string
		wantLimit  int
	}{
		{name: "inline threads", args: map[string]any{"threads": string(threads)}},
		{name: "from source", args: map[string]any{"source": "gmail", "limit": float64(10)}, wantSource: "gmail", wantLimit: 10},
		{name: "source default limit", args: map[string]any{"source": "imap"}, wantSource: "imap", wantLimit: defaultToolLimit},
		{name: "neither", args: map[string]any{}, wantError: true},
		{name: "both", args: map[string]any{"threads": string(threads), "source": "gmail"}, wantError: true},
		{name: "bad json", args: map[string]any{"threads": "{"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			tools := NewTools(svc, uuid.New())

			result, err := tools.handleClassify(context.Background(), call("classify_threads", tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, result.IsError, resultText(t, result))
			assert.Equal(t, tt.wantSource, svc.source)
			assert.Equal(t, tt.wantLimit, svc.limit)
		})
	}
}

func TestHandleClassify_ReturnsPartition(t *testing.T) {
	svc := &fakeService{}
	tools := NewTools(svc, uuid.New())

	result, err := tools.handleClassify(context.Background(), call("classify_threads", map[string]any{
		"threads": `[{"id":"t1","subject":"hello"},{"id":"t2","subject":"later"}]`,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Len(t, svc.classified, 2)
	assert.Contains(t, resultText(t, result), `"run_id": "run-1"`)
}

func TestHandleCreateCategory(t *testing.T) {
	svc := &fakeService{}
	tools := NewTools(svc, uuid.New())

	result, err := tools.handleCreateCategory(context.Background(), call("create_category", map[string]any{
		"name":        "Finance",
		"description": "invoices and receipts",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "Finance", svc.created.Name)
	assert.Contains(t, resultText(t, result), `"id": "finance"`)

	result, err = tools.handleCreateCategory(context.Background(), call("create_category", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateCategory_DomainErrors(t *testing.T) {
	svc := &fakeService{err: &domain.DuplicateNameError{Name: "Finance"}}
	tools := NewTools(svc, uuid.New())

	result, err := tools.handleCreateCategory(context.Background(), call("create_category", map[string]any{"name": "Finance"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "DUPLICATE_NAME")
}

func TestHandleDeleteCategory(t *testing.T) {
	svc := &fakeService{}
	tools := NewTools(svc, uuid.New())

	result, err := tools.handleDeleteCategory(context.Background(), call("delete_category", map[string]any{"id": "finance"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "finance", svc.deleted)
	assert.Contains(t, resultText(t, result), `"reassigned_count": 2`)

	svc.err = &domain.ProtectedCategoryError{ID: "important"}
	result, err = tools.handleDeleteCategory(context.Background(), call("delete_category", map[string]any{"id": "important"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListCategories(t *testing.T) {
	tools := NewTools(&fakeService{}, uuid.New())

	result, err := tools.handleListCategories(context.Background(), call("list_categories", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), domain.CategoryActionRequired)
}
