package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/maxbolgarin/errm"

	"github.com/onexay/gitgraph/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS gitgraph_nodes (
	id         BIGSERIAL PRIMARY KEY,
	namespace  TEXT NOT NULL,
	handle     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	key        TEXT NOT NULL,
	properties JSONB NOT NULL,
	UNIQUE (namespace, handle)
);
CREATE TABLE IF NOT EXISTS gitgraph_edges (
	id          BIGSERIAL PRIMARY KEY,
	namespace   TEXT NOT NULL,
	from_handle TEXT NOT NULL,
	relation    TEXT NOT NULL,
	to_handle   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS gitgraph_edges_namespace ON gitgraph_edges (namespace);
`

// PostgresStore keeps namespaces in two tables shared by all repositories.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresStore connects with the pgx driver and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errm.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errm.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errm.Wrap(err, "ping postgres")
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
			s.schemaErr = errm.Wrap(err, "create schema")
		}
	})
	return s.schemaErr
}

func (s *PostgresStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errm.Wrap(err, "begin reset")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM gitgraph_edges WHERE namespace = $1`, namespace); err != nil {
		return nil, errm.Wrap(err, "reset edges")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM gitgraph_nodes WHERE namespace = $1`, namespace); err != nil {
		return nil, errm.Wrap(err, "reset nodes")
	}
	if err := tx.Commit(); err != nil {
		return nil, errm.Wrap(err, "commit reset")
	}
	return &postgresSink{db: s.db, namespace: namespace}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresSink struct {
	db        *sql.DB
	namespace string
}

func (p *postgresSink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	node, err := newNode(p.namespace, e)
	if err != nil {
		return "", err
	}
	props, err := json.Marshal(node.Properties)
	if err != nil {
		return "", errm.Wrap(err, "encode properties")
	}

	res, err := p.db.ExecContext(ctx, `
INSERT INTO gitgraph_nodes (namespace, handle, kind, key, properties)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, handle) DO NOTHING`,
		p.namespace, string(node.Handle), string(node.Kind), node.Key, string(props))
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", &ConflictError{Resource: string(node.Kind), Key: node.Key}
	}
	return node.Handle, nil
}

func (p *postgresSink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if rel == "" {
		return &ValidationError{Message: "relation is required"}
	}
	res, err := p.db.ExecContext(ctx, `
INSERT INTO gitgraph_edges (namespace, from_handle, relation, to_handle)
SELECT $1, $2, $3, $4
WHERE EXISTS (SELECT 1 FROM gitgraph_nodes WHERE namespace = $1 AND handle = $2)
  AND EXISTS (SELECT 1 FROM gitgraph_nodes WHERE namespace = $1 AND handle = $4)`,
		p.namespace, string(from), string(rel), string(to))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Resource: "node", Key: string(from) + " or " + string(to)}
	}
	return nil
}

func (p *postgresSink) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	rows, err := p.db.QueryContext(ctx, `
SELECT handle, kind, key, properties FROM gitgraph_nodes
WHERE namespace = $1 ORDER BY id`, p.namespace)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			n     Node
			props []byte
		)
		if err := rows.Scan(&n.Handle, &n.Kind, &n.Key, &props); err != nil {
			return out, err
		}
		if err := json.Unmarshal(props, &n.Properties); err != nil {
			return out, err
		}
		out.Nodes = append(out.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return out, err
	}

	edges, err := p.db.QueryContext(ctx, `
SELECT from_handle, relation, to_handle FROM gitgraph_edges
WHERE namespace = $1 ORDER BY id`, p.namespace)
	if err != nil {
		return out, err
	}
	defer edges.Close()
	for edges.Next() {
		var e Edge
		if err := edges.Scan(&e.From, &e.Relation, &e.To); err != nil {
			return out, err
		}
		out.Edges = append(out.Edges, e)
	}
	return out, edges.Err()
}
