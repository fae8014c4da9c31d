// Package category owns a user's category registry and the redistribution
// that runs when a custom category is deleted.
package category

import (
	"strings"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"

	"github.com/google/uuid"
)

// Registry is one user's category set. It is a value object: load one per
// request and never share it between users or concurrent requests.
type Registry struct {
	userID     uuid.UUID
	categories []domain.Category
	seeded     bool
}

// NewRegistry wraps stored categories. When stored is empty the built-ins
// are materialized and Seeded reports true so the caller can persist them.
func NewRegistry(userID uuid.UUID, stored []domain.Category) *Registry {
	r := &Registry{userID: userID}
	if len(stored) == 0 {
		r.categories = domain.BuiltinCategories()
		r.seeded = true
		return r
	}
	r.categories = make([]domain.Category, len(stored))
	copy(r.categories, stored)
	return r
}

func (r *Registry) UserID() uuid.UUID { return r.userID }

// Seeded reports whether the built-ins were materialized by NewRegistry.
func (r *Registry) Seeded() bool { return r.seeded }

// Categories returns a copy of the categories in declared order.
func (r *Registry) Categories() []domain.Category {
	out := make([]domain.Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Find looks a category up by id.
func (r *Registry) Find(id string) (domain.Category, bool) {
	for _, c := range r.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

// Default returns the bucket used when redistribution cannot reach the model.
func (r *Registry) Default() domain.Category {
	c, _ := domain.DefaultCategory(r.categories)
	return c
}

// Create adds a custom category. Names collide case-insensitively, and two
// names that derive the same id also collide.
func (r *Registry) Create(name, description, color string, now time.Time) (domain.Category, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return domain.Category{}, domain.ErrEmptyCategoryName
	}

	id := domain.DeriveCategoryID(name)
	for _, c := range r.categories {
		if strings.EqualFold(c.Name, name) || c.ID == id {
			return domain.Category{}, &domain.DuplicateNameError{Name: name}
		}
	}

	if color == "" {
		color = domain.DefaultCustomColor
	}
	c := domain.Category{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(description),
		IsCustom:    true,
		Color:       color,
		CreatedAt:   now,
	}
	r.categories = append(r.categories, c)
	return c, nil
}

// Delete removes a custom category and returns it. Built-ins are protected.
func (r *Registry) Delete(id string) (domain.Category, error) {
	for i, c := range r.categories {
		if c.ID != id {
			continue
		}
		if !c.IsCustom {
			return domain.Category{}, &domain.ProtectedCategoryError{ID: id}
		}
		r.categories = append(r.categories[:i:i], r.categories[i+1:]...)
		return c, nil
	}
	return domain.Category{}, &domain.NotFoundError{ID: id}
}
