// Package neo4jstore lets the matcher and the clusterer run against a Neo4j
// database instead of the embedded store.
//
// Reads for one run come from Load, which fetches the candidate nodes, their
// properties and all adjacent relationships inside a single read
// transaction. Match results are written back in one write transaction
// through ReplaceNodeProperties; the per-node writers open one each.
package neo4jstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sanonone/kektormatch/pkg/match"
)

// Config holds the connection settings.
type Config struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	MaxConnectionPoolSize int           `yaml:"max_connection_pool_size"`
	ConnectionTimeout     time.Duration `yaml:"connection_timeout"`
}

var ErrNotConnected = errors.New("neo4j driver not connected")

// Store is a Neo4j backed graph reader factory and result writer.
type Store struct {
	cfg    Config
	driver neo4j.DriverWithContext
}

// Open creates the driver and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			if cfg.MaxConnectionPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			}
			if cfg.ConnectionTimeout > 0 {
				c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
			}
		})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}
	slog.Info("[Neo4j] Connected", "uri", cfg.URI, "database", cfg.Database)
	return &Store{cfg: cfg, driver: driver}, nil
}

// Close releases the driver.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) (neo4j.SessionWithContext, error) {
	if s.driver == nil {
		return nil, ErrNotConnected
	}
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.cfg.Database}), nil
}

const (
	nodesQuery = `MATCH (n) WHERE id(n) IN $ids
RETURN id(n) AS id, properties(n) AS props`
	outgoingQuery = `MATCH (n)-[r]->(m) WHERE id(n) IN $ids
RETURN id(n) AS src, id(r) AS rel, id(m) AS dst, properties(r) AS props ORDER BY rel`
	incomingQuery = `MATCH (m)-[r]->(n) WHERE id(n) IN $ids
RETURN id(m) AS src, id(r) AS rel, id(n) AS dst, properties(r) AS props ORDER BY rel`
)

// Load reads everything a run over ids needs in one read transaction and
// returns it as an immutable Snapshot. Ids missing from the database are
// absent from the snapshot, whose reads then fail with match.ErrNodeNotFound.
func (s *Store) Load(ctx context.Context, ids []match.NodeID) (*Snapshot, error) {
	session, err := s.session(ctx, neo4j.AccessModeRead)
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	params := map[string]any{"ids": toInt64s(ids)}
	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodeRecs, err := collect(ctx, tx, nodesQuery, params)
		if err != nil {
			return nil, err
		}
		outRecs, err := collect(ctx, tx, outgoingQuery, params)
		if err != nil {
			return nil, err
		}
		inRecs, err := collect(ctx, tx, incomingQuery, params)
		if err != nil {
			return nil, err
		}

		nodes := make([]nodeRow, 0, len(nodeRecs))
		for _, rec := range nodeRecs {
			row, err := toNodeRow(rec)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, row)
		}
		out, err := toEdgeRows(outRecs)
		if err != nil {
			return nil, err
		}
		in, err := toEdgeRows(inRecs)
		if err != nil {
			return nil, err
		}
		return newSnapshot(nodes, out, in), nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %d nodes: %w", len(ids), err)
	}
	return res.(*Snapshot), nil
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	result, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

// SetNodeProperties implements match.ResultWriter.
func (s *Store) SetNodeProperties(ctx context.Context, id match.NodeID, props map[string]string) error {
	values := make(map[string]any, len(props))
	for k, v := range props {
		values[k] = v
	}
	return s.write(ctx, "MATCH (n) WHERE id(n) = $id SET n += $props RETURN id(n)",
		map[string]any{"id": int64(id), "props": values}, id)
}

// RemoveNodeProperties implements match.ResultWriter.
func (s *Store) RemoveNodeProperties(ctx context.Context, id match.NodeID, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.write(ctx, removeQuery(keys), map[string]any{"id": int64(id)}, id)
}

func (s *Store) write(ctx context.Context, cypher string, params map[string]any, id match.NodeID) error {
	session, err := s.session(ctx, neo4j.AccessModeWrite)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	found, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		recs, err := collect(ctx, tx, cypher, params)
		if err != nil {
			return nil, err
		}
		return len(recs) > 0, nil
	})
	if err != nil {
		return err
	}
	if !found.(bool) {
		return fmt.Errorf("%w: %d", match.ErrNodeNotFound, id)
	}
	return nil
}

// ReplaceNodeProperties implements match.BatchWriter. Clearing and setting
// run as one write transaction, so a failed persist leaves the graph as it
// was.
func (s *Store) ReplaceNodeProperties(ctx context.Context, stale []match.NodeID, keys []string, set map[match.NodeID]map[string]string) error {
	session, err := s.session(ctx, neo4j.AccessModeWrite)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	rows := make([]any, 0, len(set))
	for id, props := range set {
		values := make(map[string]any, len(props))
		for k, v := range props {
			values[k] = v
		}
		rows = append(rows, map[string]any{"id": int64(id), "props": values})
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(stale) > 0 && len(keys) > 0 {
			if _, err := collect(ctx, tx, batchRemoveQuery(keys), map[string]any{"ids": toInt64s(stale)}); err != nil {
				return nil, err
			}
		}
		if len(rows) == 0 {
			return nil, nil
		}
		recs, err := collect(ctx, tx, batchSetQuery, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		if len(recs) < len(rows) {
			return nil, fmt.Errorf("%w: %d of %d nodes missing", match.ErrNodeNotFound, len(rows)-len(recs), len(rows))
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("write results for %d nodes: %w", len(set), err)
	}
	return nil
}

const batchSetQuery = `UNWIND $rows AS row
MATCH (n) WHERE id(n) = row.id SET n += row.props RETURN id(n)`

func removeQuery(keys []string) string {
	return "MATCH (n) WHERE id(n) = $id " + removeClause(keys) + " RETURN id(n)"
}

func batchRemoveQuery(keys []string) string {
	return "UNWIND $ids AS nid MATCH (n) WHERE id(n) = nid " + removeClause(keys)
}

// removeClause builds a REMOVE over backtick-quoted property names; Cypher
// cannot take property names as parameters.
func removeClause(keys []string) string {
	var sb strings.Builder
	sb.WriteString("REMOVE ")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("n.`")
		sb.WriteString(strings.ReplaceAll(k, "`", "``"))
		sb.WriteString("`")
	}
	return sb.String()
}

func toInt64s(ids []match.NodeID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
