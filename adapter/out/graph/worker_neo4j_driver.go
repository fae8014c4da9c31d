// Package graph stores learned sender patterns in Neo4j.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DriverOptions configures the pattern store connection.
type DriverOptions struct {
	URL      string
	Username string
	Password string
	// PoolSize bounds open connections. Pattern writes are one transaction
	// per classification run, so a small pool is enough.
	PoolSize int
}

// Connect opens a driver and fails fast when the server is unreachable, so
// callers can run without patterns instead of erroring per run.
func Connect(ctx context.Context, opts DriverOptions) (neo4j.DriverWithContext, error) {
	auth := neo4j.NoAuth()
	if opts.Username != "" && opts.Password != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URL, auth, func(c *neo4j.Config) {
		if opts.PoolSize > 0 {
			c.MaxConnectionPoolSize = opts.PoolSize
		}
		c.SocketConnectTimeout = 5 * time.Second
		c.UserAgent = "thread-classifier"
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j driver for %s: %w", opts.URL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("neo4j unreachable at %s: %w", opts.URL, err)
	}
	return driver, nil
}
