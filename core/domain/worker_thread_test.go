package domain

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionAssign(t *testing.T) {
	p := NewPartition(BuiltinCategories())

	assert.True(t, p.Assign(CategoryImportant, Thread{ID: "t1"}))
	assert.True(t, p.Assign(CategoryNewsletter, Thread{ID: "t2"}))
	assert.False(t, p.Assign("Travel", Thread{ID: "t3"}))

	assert.Equal(t, 2, p.Len())
	got, ok := p.CategoryOf("t1")
	assert.True(t, ok)
	assert.Equal(t, CategoryImportant, got)
	assert.Equal(t, CategoryImportant, p.Threads(CategoryImportant)[0].Category)

	// reassigning moves rather than duplicates
	assert.True(t, p.Assign(CategoryCanWait, Thread{ID: "t1"}))
	assert.Equal(t, 2, p.Len())
	assert.Empty(t, p.Threads(CategoryImportant))
	assert.Len(t, p.Threads(CategoryCanWait), 1)
}

func TestPartitionMarshalKeepsOrder(t *testing.T) {
	p := NewPartition(BuiltinCategories())
	p.Assign(CategoryAutoArchive, Thread{ID: "t1", Subject: "Your receipt"})

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var groups []PartitionGroup
	require.NoError(t, json.Unmarshal(data, &groups))
	require.Len(t, groups, 5)
	assert.Equal(t, CategoryImportant, groups[0].Category)
	assert.Empty(t, groups[0].Threads)
	assert.Equal(t, CategoryAutoArchive, groups[4].Category)
	assert.Equal(t, "t1", groups[4].Threads[0].ID)
}
