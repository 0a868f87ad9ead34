package storage

import (
	"context"
	"regexp"
	"sync"

	"github.com/maxbolgarin/errm"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/onexay/gitgraph/internal/types"
)

// Neo4jConfig defines Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri" env:"NEO4J_URI" env-default:"neo4j://localhost:7687"`
	Username string `yaml:"username" env:"NEO4J_USERNAME" env-default:"neo4j"`
	Password string `yaml:"password" env:"NEO4J_PASSWORD"`
	Database string `yaml:"database" env:"NEO4J_DATABASE"`
}

// Labels and relationship types cannot be query parameters.
var cypherIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// cypherRunner opens sessions against the server.
type cypherRunner interface {
	Session(ctx context.Context) cypherSession
	Close(ctx context.Context) error
}

// cypherSession executes write statements one after another.
type cypherSession interface {
	Write(ctx context.Context, cypher string, params map[string]any) error
	Close(ctx context.Context) error
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) Session(ctx context.Context) cypherSession {
	return &driverSession{session: d.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: d.database,
	})}
}

func (d *driverRunner) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

type driverSession struct {
	session neo4j.SessionWithContext
}

func (d *driverSession) Write(ctx context.Context, cypher string, params map[string]any) error {
	result, err := d.session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func (d *driverSession) Close(ctx context.Context) error {
	return d.session.Close(ctx)
}

// Neo4jStore writes every entity as a node labelled Git and its kind, and
// every relation as a typed relationship. Nodes carry their namespace and
// handle so a rescan can delete the previous graph.
type Neo4jStore struct {
	runner cypherRunner
}

// NewNeo4jStore connects to the configured server.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, errm.Wrap(err, "create neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errm.Wrap(err, "connect to neo4j")
	}
	return newNeo4jStore(&driverRunner{driver: driver, database: cfg.Database}), nil
}

func newNeo4jStore(runner cypherRunner) *Neo4jStore {
	return &Neo4jStore{runner: runner}
}

func (s *Neo4jStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	sink := &neo4jSink{runner: s.runner, namespace: namespace, created: make(map[Handle]struct{})}
	err := sink.write(ctx, `MATCH (n:Git {namespace: $namespace}) DETACH DELETE n`,
		map[string]any{"namespace": namespace})
	if err != nil {
		_ = sink.Flush(ctx)
		return nil, errm.Wrap(err, "reset namespace "+namespace)
	}
	return sink, nil
}

func (s *Neo4jStore) Close() error {
	return s.runner.Close(context.Background())
}

// neo4jSink writes through one session from the reset until Flush.
type neo4jSink struct {
	runner    cypherRunner
	namespace string

	mu      sync.Mutex
	session cypherSession
	created map[Handle]struct{}
}

func (n *neo4jSink) write(ctx context.Context, cypher string, params map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session == nil {
		n.session = n.runner.Session(ctx)
	}
	return n.session.Write(ctx, cypher, params)
}

// Flush closes the session.
func (n *neo4jSink) Flush(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session == nil {
		return nil
	}
	err := n.session.Close(ctx)
	n.session = nil
	return err
}

func (n *neo4jSink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	node, err := newNode(n.namespace, e)
	if err != nil {
		return "", err
	}
	if !cypherIdent.MatchString(string(node.Kind)) {
		return "", &ValidationError{Message: "invalid label " + string(node.Kind)}
	}

	n.mu.Lock()
	_, dup := n.created[node.Handle]
	n.mu.Unlock()
	if dup {
		return "", &ConflictError{Resource: string(node.Kind), Key: node.Key}
	}

	err = n.write(ctx,
		`CREATE (n:Git:`+string(node.Kind)+` {namespace: $namespace, handle: $handle, key: $key}) SET n += $props`,
		map[string]any{
			"namespace": n.namespace,
			"handle":    string(node.Handle),
			"key":       node.Key,
			"props":     node.Properties,
		})
	if err != nil {
		return "", err
	}

	n.mu.Lock()
	n.created[node.Handle] = struct{}{}
	n.mu.Unlock()
	return node.Handle, nil
}

func (n *neo4jSink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if !cypherIdent.MatchString(string(rel)) {
		return &ValidationError{Message: "invalid relation " + string(rel)}
	}
	n.mu.Lock()
	for _, h := range []Handle{from, to} {
		if _, ok := n.created[h]; !ok {
			n.mu.Unlock()
			return &NotFoundError{Resource: "node", Key: string(h)}
		}
	}
	n.mu.Unlock()

	return n.write(ctx,
		`MATCH (a:Git {namespace: $namespace, handle: $from}), (b:Git {namespace: $namespace, handle: $to}) `+
			`CREATE (a)-[:`+string(rel)+`]->(b)`,
		map[string]any{"namespace": n.namespace, "from": string(from), "to": string(to)})
}
