package category

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/service/classification"

	"github.com/google/uuid"
)

// memStore is an in-memory CategoryStore.
type memStore struct {
	mu          sync.Mutex
	categories  map[uuid.UUID][]domain.Category
	assignments map[uuid.UUID]map[string]domain.Thread
	order       map[uuid.UUID][]string
	creates     int
	deletes     int
}

func newMemStore() *memStore {
	return &memStore{
		categories:  make(map[uuid.UUID][]domain.Category),
		assignments: make(map[uuid.UUID]map[string]domain.Thread),
		order:       make(map[uuid.UUID][]string),
	}
}

func (m *memStore) ListCategories(_ context.Context, userID uuid.UUID) ([]domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Category(nil), m.categories[userID]...), nil
}

func (m *memStore) CreateCategories(_ context.Context, userID uuid.UUID, categories ...domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	for _, c := range categories {
		for _, existing := range m.categories[userID] {
			if existing.ID == c.ID {
				return &domain.DuplicateNameError{Name: c.Name}
			}
		}
		m.categories[userID] = append(m.categories[userID], c)
	}
	return nil
}

func (m *memStore) DeleteCategory(_ context.Context, userID uuid.UUID, categoryID string, reassigned []domain.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	cats := m.categories[userID]
	for i, c := range cats {
		if c.ID == categoryID {
			m.categories[userID] = append(cats[:i:i], cats[i+1:]...)
			m.saveLocked(userID, reassigned)
			return nil
		}
	}
	return &domain.NotFoundError{ID: categoryID}
}

func (m *memStore) ListAssignments(_ context.Context, userID uuid.UUID) ([]domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Thread
	for _, id := range m.order[userID] {
		out = append(out, m.assignments[userID][id])
	}
	return out, nil
}

func (m *memStore) SaveAssignments(_ context.Context, userID uuid.UUID, threads []domain.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(userID, threads)
	return nil
}

func (m *memStore) saveLocked(userID uuid.UUID, threads []domain.Thread) {
	if m.assignments[userID] == nil {
		m.assignments[userID] = make(map[string]domain.Thread)
	}
	for _, t := range threads {
		if _, ok := m.assignments[userID][t.ID]; !ok {
			m.order[userID] = append(m.order[userID], t.ID)
		}
		m.assignments[userID][t.ID] = t
	}
}

func (m *memStore) categoryOf(userID uuid.UUID, threadID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignments[userID][threadID].Category
}

// routedGenerator answers each prompt item by looking up its subject.
type routedGenerator struct {
	mu       sync.Mutex
	calls    int
	err      error
	route    func(subject string) string
	subjects []string
}

var subjectLine = regexp.MustCompile(`(?m)^Email (\d+):\nFrom: .*\nSubject: (.*)$`)

func (g *routedGenerator) Generate(_ context.Context, req out.GenerateRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	err := g.err
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, m := range subjectLine.FindAllStringSubmatch(req.Prompt, -1) {
		g.mu.Lock()
		g.subjects = append(g.subjects, m[2])
		g.mu.Unlock()
		sb.WriteString(fmt.Sprintf("Email %s: %s\n", m[1], g.route(m[2])))
	}
	return sb.String(), nil
}

func (g *routedGenerator) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

// takeSubjects returns the subjects sent so far and resets the record.
func (g *routedGenerator) takeSubjects() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.subjects
	g.subjects = nil
	return out
}

func (g *routedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingEvents struct {
	mu     sync.Mutex
	events []*domain.CategoryEvent
}

func (r *recordingEvents) PublishCategoryEvent(_ context.Context, e *domain.CategoryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type memReports struct {
	mu   sync.Mutex
	runs map[string]*domain.ClassificationRun
}

func (r *memReports) SaveRun(_ context.Context, run *domain.ClassificationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]*domain.ClassificationRun)
	}
	r.runs[run.ID] = run
	return nil
}

func (r *memReports) GetRun(_ context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.UserID != userID {
		return nil, &domain.NotFoundError{Kind: "run", ID: runID}
	}
	return run, nil
}

func (r *memReports) ListRuns(context.Context, uuid.UUID, int) ([]*domain.ClassificationRun, error) {
	return nil, nil
}

type countingCache struct {
	mu           sync.Mutex
	data         map[uuid.UUID][]domain.Category
	invalidation int
}

func (c *countingCache) GetCategories(_ context.Context, userID uuid.UUID) ([]domain.Category, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cats, ok := c.data[userID]
	return cats, ok, nil
}

func (c *countingCache) SetCategories(_ context.Context, userID uuid.UUID, cats []domain.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[uuid.UUID][]domain.Category)
	}
	c.data[userID] = cats
	return nil
}

func (c *countingCache) InvalidateCategories(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, userID)
	c.invalidation++
	return nil
}

type staticSource struct {
	threads []domain.Thread
}

func (s staticSource) Name() string { return "static" }

func (s staticSource) ListThreads(_ context.Context, _ uuid.UUID, limit int) ([]domain.Thread, error) {
	if limit > 0 && limit < len(s.threads) {
		return s.threads[:limit], nil
	}
	return s.threads, nil
}

type fixture struct {
	svc     *Service
	store   *memStore
	gen     *routedGenerator
	events  *recordingEvents
	reports *memReports
	cache   *countingCache
}

func newFixture(route func(string) string, sources ...out.ThreadSource) *fixture {
	store := newMemStore()
	gen := &routedGenerator{route: route}
	events := &recordingEvents{}
	reports := &memReports{}
	cache := &countingCache{}

	cfg := classification.DefaultModelClassifierConfig()
	cfg.RetryCooldown = 0
	cfg.BatchPause = 0
	scorer := classification.NewRuleScorer(classification.DefaultScoringPolicy())
	model := classification.NewModelClassifier(gen, scorer, cfg)

	svc := NewService(Deps{
		Store:        store,
		Orchestrator: classification.NewOrchestrator(scorer, model),
		Cache:        cache,
		Events:       events,
		Reports:      reports,
		Sources:      sources,
	})
	return &fixture{svc: svc, store: store, gen: gen, events: events, reports: reports, cache: cache}
}
