package http

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	categories []domain.Category
	created    []in.CreateCategoryRequest
	deleted    []string
	classified [][]domain.Thread
	sources    []string
	runs       map[string]*domain.ClassificationRun
	err        error
}

func (f *fakeService) Classify(_ context.Context, _ uuid.UUID, threads []domain.Thread) (*domain.ClassificationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.classified = append(f.classified, threads)
	p := domain.NewPartition(f.categories)
	for _, t := range threads {
		p.Assign(f.categories[0].Name, t)
	}
	return &domain.ClassificationResult{RunID: "run-1", Partition: p}, nil
}

func (f *fakeService) ClassifyFromSource(_ context.Context, _ uuid.UUID, source string, _ int) (*domain.ClassificationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sources = append(f.sources, source)
	return &domain.ClassificationResult{RunID: "run-2", Partition: domain.NewPartition(f.categories)}, nil
}

func (f *fakeService) ListCategories(context.Context, uuid.UUID) ([]domain.Category, error) {
	return f.categories, f.err
}

func (f *fakeService) CreateCategory(_ context.Context, _ uuid.UUID, req in.CreateCategoryRequest) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &domain.Category{ID: domain.DeriveCategoryID(req.Name), Name: req.Name, IsCustom: true}, nil
}

func (f *fakeService) DeleteCategory(_ context.Context, _ uuid.UUID, id string) (*domain.DeleteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, id)
	return &domain.DeleteResult{Deleted: domain.Category{ID: id}, ReassignedCount: 3, Partition: domain.NewPartition(f.categories)}, nil
}

func (f *fakeService) GetRun(_ context.Context, _ uuid.UUID, runID string) (*domain.ClassificationRun, error) {
	if run, ok := f.runs[runID]; ok {
		return run, nil
	}
	return nil, &domain.NotFoundError{Kind: "run", ID: runID}
}

func (f *fakeService) TopSenders(_ context.Context, _ uuid.UUID, category string, _ int) ([]domain.SenderPattern, error) {
	return []domain.SenderPattern{{Sender: "boss@example.com", Category: category, Count: 4}}, nil
}

type fakeJobs struct {
	jobs []*out.ClassifyJob
}

func (f *fakeJobs) PublishClassify(_ context.Context, job *out.ClassifyJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

var testUser = uuid.MustParse("6f1c7a0e-1e0b-4c55-9a53-3f4f0b0d8a11")

func newTestApp(svc *fakeService, jobs out.JobProducer) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("request_id", "req-1")
		if c.Get("X-Anonymous") == "" {
			c.Locals("user_id", testUser)
		}
		return c.Next()
	})
	NewCategoryHandler(svc).Register(app)
	NewClassifyHandler(svc, jobs).Register(app, nil)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var decoded APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestCategoryHandler(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		svc := &fakeService{categories: domain.BuiltinCategories()}
		status, resp := doRequest(t, newTestApp(svc, nil), "GET", "/categories", "")

		assert.Equal(t, fiber.StatusOK, status)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.EqualValues(t, 5, data["total"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		app := newTestApp(&fakeService{}, nil)
		req := httptest.NewRequest("GET", "/categories", nil)
		req.Header.Set("X-Anonymous", "1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("create", func(t *testing.T) {
		svc := &fakeService{}
		status, resp := doRequest(t, newTestApp(svc, nil), "POST", "/categories",
			`{"name":"  Travel ","description":"Flights and hotels"}`)

		assert.Equal(t, fiber.StatusCreated, status)
		assert.True(t, resp.Success)
		require.Len(t, svc.created, 1)
		assert.Equal(t, "Travel", svc.created[0].Name)
	})

	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing name", `{"description":"x"}`, nil, 400, "MISSING_FIELD"},
		{"name too long", `{"name":"` + strings.Repeat("a", 65) + `"}`, nil, 400, "INVALID_INPUT"},
		{"malformed body", `{"name":`, nil, 400, "BAD_REQUEST"},
		{"duplicate", `{"name":"Work"}`, &domain.DuplicateNameError{Name: "Work"}, 409, "DUPLICATE_NAME"},
	}
	for _, tt := range tests {
		t.Run("create "+tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			status, resp := doRequest(t, newTestApp(svc, nil), "POST", "/categories", tt.body)
			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	t.Run("delete", func(t *testing.T) {
		svc := &fakeService{categories: domain.BuiltinCategories()}
		status, resp := doRequest(t, newTestApp(svc, nil), "DELETE", "/categories/travel", "")

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, []string{"travel"}, svc.deleted)
		data := resp.Data.(map[string]any)
		assert.EqualValues(t, 3, data["reassigned_count"])
	})

	t.Run("delete protected", func(t *testing.T) {
		svc := &fakeService{err: &domain.ProtectedCategoryError{ID: "important"}}
		status, resp := doRequest(t, newTestApp(svc, nil), "DELETE", "/categories/important", "")
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Equal(t, "PROTECTED_CATEGORY", resp.Error.Code)
	})

	t.Run("patterns", func(t *testing.T) {
		svc := &fakeService{}
		status, resp := doRequest(t, newTestApp(svc, nil), "GET", "/categories/patterns?category=Work", "")
		assert.Equal(t, fiber.StatusOK, status)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "Work", data["category"])
		assert.Len(t, data["senders"], 1)
	})

	t.Run("patterns needs category", func(t *testing.T) {
		status, _ := doRequest(t, newTestApp(&fakeService{}, nil), "GET", "/categories/patterns", "")
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestClassifyHandler(t *testing.T) {
	t.Run("inline threads", func(t *testing.T) {
		svc := &fakeService{categories: domain.BuiltinCategories()}
		status, resp := doRequest(t, newTestApp(svc, nil), "POST", "/classify",
			`{"threads":[{"id":"t1","subject":"Lunch?","sender":"a@b.c"}]}`)

		assert.Equal(t, fiber.StatusOK, status)
		require.Len(t, svc.classified, 1)
		assert.Equal(t, "t1", svc.classified[0][0].ID)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "run-1", data["run_id"])
	})

	t.Run("source", func(t *testing.T) {
		svc := &fakeService{categories: domain.BuiltinCategories()}
		status, _ := doRequest(t, newTestApp(svc, nil), "POST", "/classify", `{"source":"Gmail"}`)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, []string{"gmail"}, svc.sources)
	})

	t.Run("async", func(t *testing.T) {
		jobs := &fakeJobs{}
		status, _ := doRequest(t, newTestApp(&fakeService{}, jobs), "POST", "/classify",
			`{"source":"imap","limit":20,"async":true}`)
		assert.Equal(t, fiber.StatusAccepted, status)
		require.Len(t, jobs.jobs, 1)
		assert.Equal(t, &out.ClassifyJob{UserID: testUser, Source: "imap", Limit: 20}, jobs.jobs[0])
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty", `{}`, 400},
		{"both", `{"threads":[{"id":"t1"}],"source":"gmail"}`, 400},
		{"async inline", `{"threads":[{"id":"t1"}],"async":true}`, 400},
		{"async without queue", `{"source":"gmail","async":true}`, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := doRequest(t, newTestApp(&fakeService{}, nil), "POST", "/classify", tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, resp.Success)
		})
	}

	t.Run("upstream failure", func(t *testing.T) {
		svc := &fakeService{err: &domain.UpstreamUnavailableError{Op: "gmail", Err: errors.New("down")}}
		status, resp := doRequest(t, newTestApp(svc, nil), "POST", "/classify", `{"source":"gmail"}`)
		assert.Equal(t, fiber.StatusServiceUnavailable, status)
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", resp.Error.Code)
	})

	t.Run("get run", func(t *testing.T) {
		svc := &fakeService{runs: map[string]*domain.ClassificationRun{
			"r1": {ID: "r1", UserID: testUser, Trigger: domain.TriggerClassify},
		}}
		status, _ := doRequest(t, newTestApp(svc, nil), "GET", "/classify/runs/r1", "")
		assert.Equal(t, fiber.StatusOK, status)

		status, resp := doRequest(t, newTestApp(svc, nil), "GET", "/classify/runs/missing", "")
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})
}

type fakeConnector struct {
	started []string
	err     error
}

func (f *fakeConnector) Start(_ context.Context, _ uuid.UUID, provider string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, provider)
	return "https://accounts.example.com/auth?state=s1", nil
}

func (f *fakeConnector) Complete(_ context.Context, _, state, _ string) (uuid.UUID, error) {
	if state != "s1" {
		return uuid.Nil, domain.ErrInvalidOAuthState
	}
	return testUser, nil
}

func TestOAuthHandler(t *testing.T) {
	conn := &fakeConnector{}
	app := fiber.New()
	h := NewOAuthHandler(conn)
	h.RegisterCallback(app)
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", testUser)
		return c.Next()
	})
	h.Register(app)

	status, resp := doRequest(t, app, "GET", "/sources/gmail/connect", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "https://accounts.example.com/auth?state=s1", resp.Data.(map[string]any)["auth_url"])
	assert.Equal(t, []string{"gmail"}, conn.started)

	status, _ = doRequest(t, app, "GET", "/sources/gmail/callback?state=s1&code=c", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, resp = doRequest(t, app, "GET", "/sources/gmail/callback?state=replayed&code=c", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)

	status, _ = doRequest(t, app, "GET", "/sources/gmail/callback?error=access_denied", "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(nil).
		AddCheck("redis", CheckFunc(func(context.Context) error { return nil }))
	h.Register(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	h.AddCheck("neo4j", CheckFunc(func(context.Context) error { return errors.New("refused") }))
	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
