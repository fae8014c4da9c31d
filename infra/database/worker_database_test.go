package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithQueryParam(t *testing.T) {
	got, err := withQueryParam("postgres://u:p@localhost:5432/db?sslmode=disable", "default_query_exec_mode", "simple_protocol")
	require.NoError(t, err)
	assert.Contains(t, got, "sslmode=disable")
	assert.Contains(t, got, "default_query_exec_mode=simple_protocol")

	kept, err := withQueryParam("postgres://localhost/db?default_query_exec_mode=exec", "default_query_exec_mode", "simple_protocol")
	require.NoError(t, err)
	assert.Contains(t, kept, "default_query_exec_mode=exec")
}

func TestNewSQLite(t *testing.T) {
	db, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}
