// Package idgen generates time-sortable identifiers for runs and events.
//
// IDs are ULIDs: 48 bits of millisecond timestamp followed by 80 bits of
// monotonic entropy, encoded as 26 Crockford base32 characters. Sorting the
// strings sorts by creation time.
package idgen

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonic ULIDs. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator creates a generator reading entropy from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Generate returns a new ID.
func (g *Generator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustGenerate panics if entropy cannot be read.
func (g *Generator) MustGenerate() string {
	id, err := g.Generate()
	if err != nil {
		panic(err)
	}
	return id
}

// Timestamp extracts the creation time from an ID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

var defaultGenerator = NewGenerator()

// NewID returns an ID from the package generator.
func NewID() string {
	return defaultGenerator.MustGenerate()
}
