package storage

import (
	"maps"

	"github.com/onexay/gitgraph/internal/types"
)

// Node is an entity as stored by a sink.
type Node struct {
	Handle     Handle           `json:"handle"`
	Kind       types.EntityKind `json:"kind"`
	Key        string           `json:"key"`
	Properties map[string]any   `json:"properties"`
}

// Edge is a stored relationship.
type Edge struct {
	From     Handle         `json:"from"`
	Relation types.Relation `json:"relation"`
	To       Handle         `json:"to"`
}

// Snapshot lists stored nodes and edges in creation order.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// CountByKind tallies nodes per entity kind.
func (s Snapshot) CountByKind() map[types.EntityKind]int {
	out := make(map[types.EntityKind]int)
	for _, n := range s.Nodes {
		out[n.Kind]++
	}
	return out
}

// CountByRelation tallies edges per relation.
func (s Snapshot) CountByRelation() map[types.Relation]int {
	out := make(map[types.Relation]int)
	for _, e := range s.Edges {
		out[e.Relation]++
	}
	return out
}

func newNode(namespace string, e types.Entity) (Node, error) {
	key := e.EntityKey()
	if key == "" {
		return Node{}, &ValidationError{Message: string(e.EntityKind()) + " key is required"}
	}
	handle, err := HandleFor(namespace, e.EntityKind(), key)
	if err != nil {
		return Node{}, err
	}
	return Node{
		Handle:     handle,
		Kind:       e.EntityKind(),
		Key:        key,
		Properties: e.Properties(),
	}, nil
}

func (n Node) clone() Node {
	n.Properties = maps.Clone(n.Properties)
	return n
}
