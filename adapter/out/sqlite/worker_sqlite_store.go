// Package sqlite keeps categories, assignments and run reports in a local
// SQLite file for single-user and offline use.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	user_id     TEXT    NOT NULL,
	id          TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	is_custom   INTEGER NOT NULL DEFAULT 0,
	color       TEXT    NOT NULL DEFAULT '',
	position    INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (user_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS categories_user_name_idx ON categories (user_id, lower(name));

CREATE TABLE IF NOT EXISTS thread_assignments (
	user_id     TEXT    NOT NULL,
	thread_id   TEXT    NOT NULL,
	category_id TEXT    NOT NULL,
	subject     TEXT    NOT NULL DEFAULT '',
	sender      TEXT    NOT NULL DEFAULT '',
	snippet     TEXT    NOT NULL DEFAULT '',
	received_at INTEGER NOT NULL DEFAULT 0,
	seq         INTEGER NOT NULL,
	PRIMARY KEY (user_id, thread_id),
	FOREIGN KEY (user_id, category_id) REFERENCES categories (user_id, id)
);

CREATE TABLE IF NOT EXISTS classification_runs (
	id         TEXT    PRIMARY KEY,
	user_id    TEXT    NOT NULL,
	run_trigger TEXT   NOT NULL,
	stats      TEXT    NOT NULL,
	counts     TEXT    NOT NULL,
	started_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS classification_runs_user_idx ON classification_runs (user_id, started_at DESC);
`

// Store implements out.CategoryStore and out.RunReportRepository on SQLite.
type Store struct {
	db *sqlx.DB
}

var (
	_ out.CategoryStore       = (*Store)(nil)
	_ out.RunReportRepository = (*Store)(nil)
)

// New wraps an open database. Call Migrate before first use.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}
	return nil
}

type categoryRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	IsCustom    bool   `db:"is_custom"`
	Color       string `db:"color"`
	CreatedAt   int64  `db:"created_at"`
}

func (r *categoryRow) toEntity() domain.Category {
	return domain.Category{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsCustom:    r.IsCustom,
		Color:       r.Color,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

// ListCategories returns the user's categories in declaration order.
func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]domain.Category, error) {
	var rows []categoryRow
	query := `SELECT id, name, description, is_custom, color, created_at
		FROM categories WHERE user_id = ? ORDER BY position ASC`

	if err := s.db.SelectContext(ctx, &rows, query, userID.String()); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	categories := make([]domain.Category, len(rows))
	for i := range rows {
		categories[i] = rows[i].toEntity()
	}
	return categories, nil
}

// CreateCategories appends categories after the user's existing ones.
func (s *Store) CreateCategories(ctx context.Context, userID uuid.UUID, categories ...domain.Category) error {
	if len(categories) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM categories WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("failed to read category position: %w", err)
	}

	for i, c := range categories {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (user_id, id, name, description, is_custom, color, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID.String(), c.ID, c.Name, c.Description, c.IsCustom, c.Color, next+i, createdAt.UnixMilli(),
		); err != nil {
			if isConstraintViolation(err) {
				return &domain.DuplicateNameError{Name: c.Name}
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteCategory rewrites the reassigned threads and removes the category
// in one transaction.
func (s *Store) DeleteCategory(ctx context.Context, userID uuid.UUID, categoryID string, reassigned []domain.Thread) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM categories WHERE user_id = ? AND id = ?`, userID.String(), categoryID); err != nil {
		return fmt.Errorf("failed to look up category: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{ID: categoryID}
	}

	if err := upsertAssignments(ctx, tx, userID, reassigned); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM thread_assignments WHERE user_id = ? AND category_id = ?`, userID.String(), categoryID); err != nil {
		return fmt.Errorf("failed to clear orphaned assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE user_id = ? AND id = ?`, userID.String(), categoryID); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	return tx.Commit()
}

type assignmentRow struct {
	ThreadID   string `db:"thread_id"`
	Category   string `db:"category_name"`
	Subject    string `db:"subject"`
	Sender     string `db:"sender"`
	Snippet    string `db:"snippet"`
	ReceivedAt int64  `db:"received_at"`
}

// ListAssignments returns every stored thread with its category name, in
// the order the threads were first seen.
func (s *Store) ListAssignments(ctx context.Context, userID uuid.UUID) ([]domain.Thread, error) {
	var rows []assignmentRow
	query := `
		SELECT t.thread_id, c.name AS category_name, t.subject, t.sender, t.snippet, t.received_at
		FROM thread_assignments t
		JOIN categories c ON c.user_id = t.user_id AND c.id = t.category_id
		WHERE t.user_id = ?
		ORDER BY t.seq ASC`

	if err := s.db.SelectContext(ctx, &rows, query, userID.String()); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	threads := make([]domain.Thread, len(rows))
	for i, r := range rows {
		threads[i] = domain.Thread{
			ID:         r.ThreadID,
			Subject:    r.Subject,
			Sender:     r.Sender,
			Snippet:    r.Snippet,
			Category:   r.Category,
			ReceivedAt: fromMillis(r.ReceivedAt),
		}
	}
	return threads, nil
}

// SaveAssignments upserts threads keyed by thread ID.
func (s *Store) SaveAssignments(ctx context.Context, userID uuid.UUID, threads []domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAssignments(ctx, tx, userID, threads); err != nil {
		return err
	}
	return tx.Commit()
}

// upsertAssignments resolves each thread's category by name. Threads whose
// category does not exist are skipped. seq keeps first-seen order.
func upsertAssignments(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, threads []domain.Thread) error {
	if len(threads) == 0 {
		return nil
	}

	var seq int64
	if err := tx.GetContext(ctx, &seq,
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM thread_assignments WHERE user_id = ?`, userID.String()); err != nil {
		return fmt.Errorf("failed to read assignment sequence: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO thread_assignments (user_id, thread_id, category_id, subject, sender, snippet, received_at, seq)
		SELECT ?, ?, c.id, ?, ?, ?, ?, ?
		FROM categories c
		WHERE c.user_id = ? AND lower(c.name) = ?
		ON CONFLICT (user_id, thread_id) DO UPDATE SET
			category_id = excluded.category_id,
			subject = excluded.subject,
			sender = excluded.sender,
			snippet = excluded.snippet,
			received_at = excluded.received_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare assignment upsert: %w", err)
	}
	defer stmt.Close()

	uid := userID.String()
	for i, t := range threads {
		if _, err := stmt.ExecContext(ctx,
			uid, t.ID, t.Subject, t.Sender, t.Snippet, toMillis(t.ReceivedAt), seq+int64(i),
			uid, strings.ToLower(t.Category),
		); err != nil {
			return fmt.Errorf("failed to save assignment %s: %w", t.ID, err)
		}
	}
	return nil
}

type runRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Trigger   string `db:"run_trigger"`
	Stats     string `db:"stats"`
	Counts    string `db:"counts"`
	StartedAt int64  `db:"started_at"`
}

func (r *runRow) toEntity() (*domain.ClassificationRun, error) {
	uid, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id on run %s: %w", r.ID, err)
	}
	run := &domain.ClassificationRun{
		ID:        r.ID,
		UserID:    uid,
		Trigger:   domain.RunTrigger(r.Trigger),
		StartedAt: fromMillis(r.StartedAt),
	}
	if err := json.Unmarshal([]byte(r.Stats), &run.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode run stats: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Counts), &run.Counts); err != nil {
		return nil, fmt.Errorf("failed to decode run counts: %w", err)
	}
	return run, nil
}

// SaveRun stores a run report, replacing any report with the same ID.
func (s *Store) SaveRun(ctx context.Context, run *domain.ClassificationRun) error {
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode run stats: %w", err)
	}
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("failed to encode run counts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO classification_runs (id, user_id, run_trigger, stats, counts, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID.String(), string(run.Trigger), string(stats), string(counts), toMillis(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads one of the user's runs.
func (s *Store) GetRun(ctx context.Context, userID uuid.UUID, runID string) (*domain.ClassificationRun, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM classification_runs WHERE id = ? AND user_id = ?`, runID, userID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "run", ID: runID}
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return row.toEntity()
}

// ListRuns returns the user's most recent runs first.
func (s *Store) ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.ClassificationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM classification_runs WHERE user_id = ? ORDER BY started_at DESC, id DESC LIMIT ?`,
		userID.String(), limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*domain.ClassificationRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
