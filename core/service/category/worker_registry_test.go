package category

import (
	"testing"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_MaterializesBuiltins(t *testing.T) {
	reg := NewRegistry(uuid.New(), nil)

	assert.True(t, reg.Seeded())
	assert.Len(t, reg.Categories(), 5)
	assert.False(t, domain.HasCustom(reg.Categories()))
	assert.Equal(t, domain.CategoryCanWait, reg.Default().Name)
}

func TestRegistry_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr func(error) bool
	}{
		{name: "new custom", input: "Side Projects", wantID: "side-projects"},
		{name: "whitespace normalized", input: "  Side   Projects ", wantID: "side-projects"},
		{name: "duplicate of builtin ignoring case", input: "newsletter", wantErr: domain.IsDuplicateName},
		{name: "same derived id", input: "action  required", wantErr: domain.IsDuplicateName},
		{name: "empty", input: "   ", wantErr: func(err error) bool { return err == domain.ErrEmptyCategoryName }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry(uuid.New(), nil)

			c, err := reg.Create(tt.input, " Personal hacking ", "", now)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				assert.Len(t, reg.Categories(), 5)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, c.ID)
			assert.Equal(t, "Side Projects", c.Name)
			assert.Equal(t, "Personal hacking", c.Description)
			assert.True(t, c.IsCustom)
			assert.Equal(t, domain.DefaultCustomColor, c.Color)
			assert.Equal(t, now, c.CreatedAt)
			assert.True(t, domain.HasCustom(reg.Categories()))
		})
	}
}

func TestRegistry_Delete(t *testing.T) {
	reg := NewRegistry(uuid.New(), nil)
	_, err := reg.Create("Finance", "invoices", "#00ff00", time.Now())
	require.NoError(t, err)

	_, err = reg.Delete("important")
	var protected *domain.ProtectedCategoryError
	assert.ErrorAs(t, err, &protected)

	_, err = reg.Delete("nope")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Len(t, reg.Categories(), 6)

	deleted, err := reg.Delete("finance")
	require.NoError(t, err)
	assert.Equal(t, "Finance", deleted.Name)
	assert.Len(t, reg.Categories(), 5)
	_, ok := reg.Find("finance")
	assert.False(t, ok)
}

func TestRegistry_CopiesAreIsolated(t *testing.T) {
	stored := domain.BuiltinCategories()
	reg := NewRegistry(uuid.New(), stored)
	assert.False(t, reg.Seeded())

	stored[0].Name = "changed"
	cats := reg.Categories()
	cats[1].Name = "changed too"

	assert.Equal(t, domain.CategoryImportant, reg.Categories()[0].Name)
	assert.Equal(t, domain.CategoryActionRequired, reg.Categories()[1].Name)
}
