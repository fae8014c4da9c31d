// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const categorySchema = `
CREATE TABLE IF NOT EXISTS categories (
	user_id     UUID        NOT NULL,
	id          TEXT        NOT NULL,
	name        TEXT        NOT NULL,
	description TEXT        NOT NULL DEFAULT '',
	is_custom   BOOLEAN     NOT NULL DEFAULT FALSE,
	color       TEXT        NOT NULL DEFAULT '',
	position    INTEGER     NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS categories_user_name_idx ON categories (user_id, lower(name));

CREATE TABLE IF NOT EXISTS thread_assignments (
	user_id     UUID        NOT NULL,
	thread_id   TEXT        NOT NULL,
	category_id TEXT        NOT NULL,
	subject     TEXT        NOT NULL DEFAULT '',
	sender      TEXT        NOT NULL DEFAULT '',
	snippet     TEXT        NOT NULL DEFAULT '',
	received_at TIMESTAMPTZ,
	assigned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, thread_id),
	FOREIGN KEY (user_id, category_id) REFERENCES categories (user_id, id)
);
CREATE INDEX IF NOT EXISTS thread_assignments_category_idx ON thread_assignments (user_id, category_id);
`

// CategoryAdapter implements out.CategoryStore using PostgreSQL.
type CategoryAdapter struct {
	db *sqlx.DB
}

var _ out.CategoryStore = (*CategoryAdapter)(nil)

// NewCategoryAdapter creates a new CategoryAdapter.
func NewCategoryAdapter(db *sqlx.DB) *CategoryAdapter {
	return &CategoryAdapter{db: db}
}

// Migrate creates the category and assignment tables when missing.
func (a *CategoryAdapter) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, categorySchema); err != nil {
		return fmt.Errorf("failed to migrate category schema: %w", err)
	}
	return nil
}

type categoryRow struct {
	UserID      uuid.UUID `db:"user_id"`
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsCustom    bool      `db:"is_custom"`
	Color       string    `db:"color"`
	Position    int       `db:"position"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *categoryRow) toEntity() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsCustom:    r.IsCustom,
		Color:       r.Color,
		CreatedAt:   r.CreatedAt,
	}
}

type assignmentRow struct {
	ThreadID   string       `db:"thread_id"`
	Category   string       `db:"category_name"`
	Subject    string       `db:"subject"`
	Sender     string       `db:"sender"`
	Snippet    string       `db:"snippet"`
	ReceivedAt sql.NullTime `db:"received_at"`
}

func (r *assignmentRow) toEntity() domain.Thread {
	t := domain.Thread{
		ID:       r.ThreadID,
		Subject:  r.Subject,
		Sender:   r.Sender,
		Snippet:  r.Snippet,
		Category: r.Category,
	}
	if r.ReceivedAt.Valid {
		t.ReceivedAt = r.ReceivedAt.Time
	}
	return t
}

// ListCategories returns the user's categories in declaration order.
func (a *CategoryAdapter) ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	var rows []categoryRow
	query := `SELECT * FROM categories WHERE user_id = $1 ORDER BY position ASC, created_at ASC`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]domain.Category, len(rows))
	for i := range rows {
		categories[i] = rows[i].toEntity()
	}
	return categories, nil
}

// CreateCategories appends categories after the user's existing ones.
func (a *CategoryAdapter) CreateCategories(ctx context.Context, userID uuid.UUID, categories ...domain.Category) error {
	if len(categories) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM categories WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to read category position: %w", err)
	}

	query := `
		INSERT INTO categories (user_id, id, name, description, is_custom, color, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, c := range categories {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			userID, c.ID, c.Name, c.Description, c.IsCustom, c.Color, next+i, createdAt,
		); err != nil {
			if isUniqueViolation(err) {
				return &domain.DuplicateNameError{Name: c.Name}
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteCategory rewrites the reassigned threads and drops the category in
// one transaction so no assignment ever points at a missing category.
func (a *CategoryAdapter) DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID string, reassigned []domain.Thread) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM categories WHERE user_id = $1 AND id = $2)`, userID, categoryID); err != nil {
		return fmt.Errorf("failed to look up category: %w", err)
	}
	if !exists {
		return &domain.NotFoundError{ID: categoryID}
	}

	if err := upsertAssignments(ctx, tx, userID, reassigned); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM thread_assignments WHERE user_id = $1 AND category_id = $2`, userID, categoryID); err != nil {
		return fmt.Errorf("failed to clear orphaned assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE user_id = $1 AND id = $2`, userID, categoryID); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return tx.Commit()
}

// ListAssignments returns every stored thread with its category name.
func (a *CategoryAdapter) ListAssignments(ctx context.Context, userID uuid.UUID) ([]domain.Thread, error) {
	var rows []assignmentRow
	query := `
		SELECT t.thread_id, c.name AS category_name, t.subject, t.sender, t.snippet, t.received_at
		FROM thread_assignments t
		JOIN categories c ON c.user_id = t.user_id AND c.id = t.category_id
		WHERE t.user_id = $1
		ORDER BY t.assigned_at ASC, t.thread_id ASC`

	if err := a.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	threads := make([]domain.Thread, len(rows))
	for i := range rows {
		threads[i] = rows[i].toEntity()
	}
	return threads, nil
}

// SaveAssignments upserts the threads keyed by thread ID.
func (a *CategoryAdapter) SaveAssignments(ctx context.Context, userID uuid.UUID, threads []domain.Thread) error {
	return upsertAssignments(ctx, a.db, userID, threads)
}

// upsertAssignments writes all threads in one statement by unnesting
// parallel arrays. Threads whose category name is unknown are skipped.
func upsertAssignments(ctx context.Context, db sqlx.ExecerContext, userID uuid.UUID, threads []domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}

	ids := make([]string, len(threads))
	names := make([]string, len(threads))
	subjects := make([]string, len(threads))
	senders := make([]string, len(threads))
	snippets := make([]string, len(threads))
	received := make([]string, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
		names[i] = strings.ToLower(t.Category)
		subjects[i] = t.Subject
		senders[i] = t.Sender
		snippets[i] = t.Snippet
		if !t.ReceivedAt.IsZero() {
			received[i] = t.ReceivedAt.UTC().Format(time.RFC3339Nano)
		}
	}

	query := `
		INSERT INTO thread_assignments (user_id, thread_id, category_id, subject, sender, snippet, received_at, assigned_at)
		SELECT $1, t.thread_id, c.id, t.subject, t.sender, t.snippet, NULLIF(t.received_at, '')::timestamptz, NOW()
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[])
			AS t(thread_id, category_name, subject, sender, snippet, received_at)
		JOIN categories c ON c.user_id = $1 AND lower(c.name) = t.category_name
		ON CONFLICT (user_id, thread_id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			subject = EXCLUDED.subject,
			sender = EXCLUDED.sender,
			snippet = EXCLUDED.snippet,
			received_at = EXCLUDED.received_at,
			assigned_at = EXCLUDED.assigned_at`

	if _, err := db.ExecContext(ctx, query, userID,
		pq.Array(ids), pq.Array(names), pq.Array(subjects),
		pq.Array(senders), pq.Array(snippets), pq.Array(received),
	); err != nil {
		return fmt.Errorf("failed to save assignments: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
