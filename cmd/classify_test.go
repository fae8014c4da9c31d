package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createOnlyService struct {
	in.ClassificationService

	existing map[string]bool
	created  []in.CreateCategoryRequest
	err      error
}

func (s *createOnlyService) CreateCategory(_ context.Context, _ uuid.UUID, req in.CreateCategoryRequest) (*domain.Category, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.existing[strings.ToLower(req.Name)] {
		return nil, &domain.DuplicateNameError{Name: req.Name}
	}
	s.created = append(s.created, req)
	return &domain.Category{Name: req.Name, IsCustom: true}, nil
}

func TestReadThreads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threads.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"t1","subject":"Invoice"}]`), 0o600))

	threads, err := readThreads(nil, path)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Invoice", threads[0].Subject)

	threads, err = readThreads(strings.NewReader(`[{"id":"a"},{"id":"b"}]`), "-")
	require.NoError(t, err)
	assert.Len(t, threads, 2)

	_, err = readThreads(strings.NewReader(`{"id":"a"}`), "-")
	assert.Error(t, err)

	_, err = readThreads(nil, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestEnsureCategories(t *testing.T) {
	svc := &createOnlyService{existing: map[string]bool{"finance": true}}

	err := ensureCategories(context.Background(), svc, uuid.New(), []string{
		"Finance=invoices",
		" Travel = flights, hotels ",
		"Side Projects",
	})
	require.NoError(t, err)
	require.Len(t, svc.created, 2)
	assert.Equal(t, in.CreateCategoryRequest{Name: "Travel", Description: "flights, hotels"}, svc.created[0])
	assert.Equal(t, "Side Projects", svc.created[1].Name)
	assert.Empty(t, svc.created[1].Description)

	svc.err = errors.New("disk full")
	assert.Error(t, ensureCategories(context.Background(), svc, uuid.New(), []string{"Other=x"}))
}

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "classify", "categories", "mcp", "token"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestResolveUser(t *testing.T) {
	t.Cleanup(func() { userArg = "" })

	userArg = ""
	id, err := resolveUser()
	require.NoError(t, err)
	assert.Equal(t, localUserID, id)

	want := uuid.New()
	userArg = want.String()
	id, err = resolveUser()
	require.NoError(t, err)
	assert.Equal(t, want, id)

	userArg = "not-a-uuid"
	_, err = resolveUser()
	assert.Error(t, err)
}
