// Package neo4j mirrors processed entries and the references between them
// into a Neo4j graph: (:Entry)-[:REFERENCES]->(:Entry), plus a (:LabID)
// node per lab_id an entry carries.
package neo4j

import (
	"context"
	"fmt"
	"strings"
	"time"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"elncore/internal/search"
	"elncore/pkg/domain"
)

const connectTimeout = 10 * time.Second

// Mirror writes entries through a Neo4j driver.
type Mirror struct {
	driver   neo4jdriver.DriverWithContext
	database string
	now      func() time.Time
}

// Open connects to uri and verifies connectivity.
func Open(ctx context.Context, uri, user, password, database string) (*Mirror, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("neo4j.Open: uri required")
	}
	if user == "" {
		user = "neo4j"
	}
	driver, err := neo4jdriver.NewDriverWithContext(uri, neo4jdriver.BasicAuth(user, password, ""), func(cfg *neo4jdriver.Config) {
		cfg.SocketConnectTimeout = connectTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j.Open: init driver: %w", err)
	}
	vctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j.Open: verify connectivity: %w", err)
	}
	return New(driver, database), nil
}

// New wraps an existing driver.
func New(driver neo4jdriver.DriverWithContext, database string) *Mirror {
	return &Mirror{driver: driver, database: database, now: func() time.Time { return time.Now().UTC() }}
}

// Close closes the driver.
func (m *Mirror) Close(ctx context.Context) error {
	if m == nil || m.driver == nil {
		return nil
	}
	return m.driver.Close(ctx)
}

const mirrorCypher = `
MERGE (e:Entry {id: $entry.id})
SET e += $entry
WITH e
UNWIND $lab_ids AS lab
MERGE (l:LabID {value: lab})
MERGE (e)-[:HAS_LAB_ID]->(l)
`

const refsCypher = `
MATCH (e:Entry {id: $id})
OPTIONAL MATCH (e)-[old:REFERENCES]->()
DELETE old
WITH DISTINCT e
UNWIND $refs AS r
MERGE (t:Entry {id: r.id})
ON CREATE SET t.upload_id = r.upload_id
MERGE (e)-[:REFERENCES]->(t)
`

// Mirror upserts entry and replaces its outgoing references.
func (m *Mirror) Mirror(ctx context.Context, entry search.Entry, refs []domain.Reference) error {
	if m == nil || m.driver == nil {
		return nil
	}
	params := Params(entry, refs, m.now())
	session := m.driver.NewSession(ctx, neo4jdriver.SessionConfig{
		AccessMode:   neo4jdriver.AccessModeWrite,
		DatabaseName: m.database,
	})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4jdriver.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, mirrorCypher, map[string]any{"entry": params["entry"], "lab_ids": params["lab_ids"]})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}
		res, err = tx.Run(ctx, refsCypher, map[string]any{"id": params["id"], "refs": params["refs"]})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j.Mirror: %s: %w", entry.Mainfile, err)
	}
	return nil
}

// Params builds the query parameters of an entry. Node ids are
// "{upload_id}/{entry_id}".
func Params(entry search.Entry, refs []domain.Reference, now time.Time) map[string]any {
	id := entry.UploadID + "/" + entry.EntryID
	labIDs := make([]any, 0, len(entry.LabIDs))
	for _, l := range entry.LabIDs {
		labIDs = append(labIDs, l)
	}
	seen := map[string]bool{}
	targets := make([]any, 0, len(refs))
	for _, r := range refs {
		eid, uid := r.EntryID(), r.UploadID()
		if eid == "" || uid == "" {
			continue
		}
		tid := uid + "/" + eid
		if seen[tid] || tid == id {
			continue
		}
		seen[tid] = true
		targets = append(targets, map[string]any{"id": tid, "upload_id": uid})
	}
	return map[string]any{
		"id": id,
		"entry": map[string]any{
			"id":           id,
			"upload_id":    entry.UploadID,
			"entry_id":     entry.EntryID,
			"mainfile":     entry.Mainfile,
			"section_type": entry.SectionType,
			"synced_at":    now.UTC().Format(time.RFC3339Nano),
		},
		"lab_ids": labIDs,
		"refs":    targets,
	}
}
