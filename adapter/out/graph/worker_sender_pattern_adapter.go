package graph

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SenderPatternAdapter implements out.PatternStore using Neo4j.
//
//	(:User)-[:RECEIVES_FROM]->(:Sender)-[:CLASSIFIED_AS {count}]->(:Category)
//
// Category nodes are per user so deleting one never touches other users.
type SenderPatternAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

var _ out.PatternStore = (*SenderPatternAdapter)(nil)

// NewSenderPatternAdapter creates a new Neo4j sender pattern adapter.
func NewSenderPatternAdapter(driver neo4j.DriverWithContext, dbName string) *SenderPatternAdapter {
	return &SenderPatternAdapter{driver: driver, dbName: dbName}
}

// EnsureIndexes creates the lookup constraints.
func (a *SenderPatternAdapter) EnsureIndexes(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.user_id IS UNIQUE`,
		`CREATE CONSTRAINT sender_address_unique IF NOT EXISTS FOR (s:Sender) REQUIRE s.address IS UNIQUE`,
		`CREATE INDEX category_user_idx IF NOT EXISTS FOR (c:Category) ON (c.user_id, c.key)`,
	}

	for _, query := range queries {
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to ensure neo4j schema: %w", err)
		}
	}
	return nil
}

// patternRow is one aggregated sender/category pair of a batch.
type patternRow struct {
	Sender   string
	Category string
	Count    int64
}

func (r patternRow) params() map[string]any {
	return map[string]any{
		"sender":   r.Sender,
		"category": r.Category,
		"key":      categoryKey(r.Category),
		"n":        r.Count,
	}
}

// aggregatePatterns folds threads into sender/category counts. Threads
// without a sender or category carry no pattern.
func aggregatePatterns(threads []domain.Thread) []patternRow {
	counts := make(map[[2]string]int64)
	var order [][2]string
	for _, t := range threads {
		sender := senderAddress(t.Sender)
		if sender == "" || strings.TrimSpace(t.Category) == "" {
			continue
		}
		k := [2]string{sender, t.Category}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}

	rows := make([]patternRow, len(order))
	for i, k := range order {
		rows[i] = patternRow{Sender: k[0], Category: k[1], Count: counts[k]}
	}
	return rows
}

// senderAddress reduces "Name <addr>" to a lowercase address.
func senderAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(raw); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(raw)
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RecordAssignments adds the threads' sender/category pairs to the graph.
func (a *SenderPatternAdapter) RecordAssignments(ctx context.Context, userID uuid.UUID, threads []domain.Thread) error {
	rows := aggregatePatterns(threads)
	if len(rows) == 0 {
		return nil
	}

	batch := make([]map[string]any, len(rows))
	for i, r := range rows {
		batch[i] = r.params()
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (u:User {user_id: $userID})
		WITH u
		UNWIND $rows AS row
		MERGE (s:Sender {address: row.sender})
		MERGE (u)-[:RECEIVES_FROM]->(s)
		MERGE (c:Category {user_id: $userID, key: row.key})
		SET c.name = row.category
		MERGE (s)-[r:CLASSIFIED_AS {user_id: $userID}]->(c)
		ON CREATE SET r.count = row.n, r.first_seen = timestamp()
		ON MATCH SET r.count = r.count + row.n
		SET r.last_seen = timestamp()
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{"userID": userID.String(), "rows": batch})
	})
	if err != nil {
		return fmt.Errorf("failed to record sender patterns: %w", err)
	}
	return nil
}

// RemoveCategory drops the user's category node and its pattern edges.
func (a *SenderPatternAdapter) RemoveCategory(ctx context.Context, userID uuid.UUID, categoryName string) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName, AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (c:Category {user_id: $userID, key: $key})
		DETACH DELETE c
	`

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, map[string]any{"userID": userID.String(), "key": categoryKey(categoryName)})
	})
	if err != nil {
		return fmt.Errorf("failed to remove category pattern: %w", err)
	}
	return nil
}

// TopSenders lists the senders most often classified into a category.
func (a *SenderPatternAdapter) TopSenders(ctx context.Context, userID uuid.UUID, categoryName string, limit int) ([]domain.SenderPattern, error) {
	if limit <= 0 {
		limit = 10
	}

	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (s:Sender)-[r:CLASSIFIED_AS {user_id: $userID}]->(c:Category {user_id: $userID, key: $key})
		RETURN s.address AS sender, c.name AS category, r.count AS count
		ORDER BY count DESC, sender ASC
		LIMIT $limit
	`

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"userID": userID.String(),
			"key":    categoryKey(categoryName),
			"limit":  limit,
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		patterns := make([]domain.SenderPattern, 0, len(records))
		for _, rec := range records {
			sender, _, _ := neo4j.GetRecordValue[string](rec, "sender")
			category, _, _ := neo4j.GetRecordValue[string](rec, "category")
			count, _, _ := neo4j.GetRecordValue[int64](rec, "count")
			patterns = append(patterns, domain.SenderPattern{Sender: sender, Category: category, Count: count})
		}
		return patterns, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query sender patterns: %w", err)
	}

	patterns := result.([]domain.SenderPattern)
	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].Count > patterns[j].Count })
	return patterns, nil
}
