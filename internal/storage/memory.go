package storage

import (
	"context"
	"sync"

	"github.com/onexay/gitgraph/internal/types"
)

// Handle is the persistent identity a sink allocates for an entity.
type Handle string

// Sink receives the entities and relationships of one scan. It is an
// append-only factory: nothing is read back while a scan is emitted.
type Sink interface {
	Create(ctx context.Context, e types.Entity) (Handle, error)
	Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error
}

// Store hands out one Sink per namespace, usually the repository name.
type Store interface {
	// Sink returns an empty sink for namespace, discarding whatever an
	// earlier scan stored there.
	Sink(ctx context.Context, namespace string) (Sink, error)
	Close() error
}

// Snapshotter is implemented by sinks that can list what they stored.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Flusher is implemented by sinks that hold a connection or buffer across
// calls. Flush ends the emission; a later Create reopens what it needs.
type Flusher interface {
	Flush(ctx context.Context) error
}

// NotFoundError signals missing records.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " " + e.Key + " not found"
}

// ConflictError signals duplicate creation attempts.
type ConflictError struct {
	Resource string
	Key      string
}

func (e *ConflictError) Error() string {
	return e.Resource + " " + e.Key + " conflicts with existing state"
}

// ValidationError represents invalid input supplied by clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// MemoryStore keeps every namespace in process memory, for development and
// testing.
type MemoryStore struct {
	mu    sync.RWMutex
	sinks map[string]*MemorySink
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sinks: make(map[string]*MemorySink)}
}

func (s *MemoryStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	sink := &MemorySink{namespace: namespace, index: make(map[Handle]int)}
	s.mu.Lock()
	s.sinks[namespace] = sink
	s.mu.Unlock()
	return sink, nil
}

// Namespace returns the sink last opened for namespace.
func (s *MemoryStore) Namespace(namespace string) (*MemorySink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sink, ok := s.sinks[namespace]
	if !ok {
		return nil, &NotFoundError{Resource: "namespace", Key: namespace}
	}
	return sink, nil
}

func (s *MemoryStore) Close() error { return nil }

// MemorySink records nodes and edges in creation order.
type MemorySink struct {
	mu        sync.RWMutex
	namespace string
	nodes     []Node
	index     map[Handle]int
	edges     []Edge
}

// NewMemorySink returns a standalone sink outside of any store.
func NewMemorySink(namespace string) *MemorySink {
	return &MemorySink{namespace: namespace, index: make(map[Handle]int)}
}

func (m *MemorySink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	node, err := newNode(m.namespace, e)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.index[node.Handle]; exists {
		return "", &ConflictError{Resource: string(node.Kind), Key: node.Key}
	}
	m.index[node.Handle] = len(m.nodes)
	m.nodes = append(m.nodes, node)
	return node.Handle, nil
}

func (m *MemorySink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rel == "" {
		return &ValidationError{Message: "relation is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[from]; !ok {
		return &NotFoundError{Resource: "node", Key: string(from)}
	}
	if _, ok := m.index[to]; !ok {
		return &NotFoundError{Resource: "node", Key: string(to)}
	}
	m.edges = append(m.edges, Edge{From: from, Relation: rel, To: to})
	return nil
}

func (m *MemorySink) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Snapshot{
		Nodes: make([]Node, 0, len(m.nodes)),
		Edges: append([]Edge(nil), m.edges...),
	}
	for _, n := range m.nodes {
		out.Nodes = append(out.Nodes, n.clone())
	}
	return out, nil
}
