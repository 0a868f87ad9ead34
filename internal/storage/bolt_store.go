package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/maxbolgarin/errm"
	bolt "go.etcd.io/bbolt"

	"github.com/onexay/gitgraph/internal/types"
)

const (
	boltGraphBucket = "graphs"
	boltNodes       = "nodes"
	boltOrder       = "order"
	boltEdges       = "edges"
)

// BoltStore keeps every namespace in one BoltDB file. Each namespace is a
// bucket holding nodes by handle, the creation order and the edges.
type BoltStore struct {
	db   *bolt.DB
	once sync.Once
}

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := openBolt(path)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltGraphBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errm.Wrap(err, "create graph bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		root := tx.Bucket([]byte(boltGraphBucket))
		if err := root.DeleteBucket([]byte(namespace)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		ns, err := root.CreateBucket([]byte(namespace))
		if err != nil {
			return err
		}
		for _, name := range []string{boltNodes, boltOrder, boltEdges} {
			if _, err := ns.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errm.Wrap(err, "reset namespace "+namespace)
	}
	return &boltSink{db: s.db, namespace: namespace}, nil
}

// Close shuts down the Bolt DB.
func (s *BoltStore) Close() error {
	s.once.Do(func() {
		_ = s.db.Close()
	})
	return nil
}

type boltSink struct {
	db        *bolt.DB
	namespace string
}

func (b *boltSink) bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	ns := tx.Bucket([]byte(boltGraphBucket)).Bucket([]byte(b.namespace))
	if ns == nil {
		return nil, &NotFoundError{Resource: "namespace", Key: b.namespace}
	}
	return ns.Bucket([]byte(name)), nil
}

func (b *boltSink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	node, err := newNode(b.namespace, e)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return "", errm.Wrap(err, "encode node")
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		nodes, err := b.bucket(tx, boltNodes)
		if err != nil {
			return err
		}
		if nodes.Get([]byte(node.Handle)) != nil {
			return &ConflictError{Resource: string(node.Kind), Key: node.Key}
		}
		if err := nodes.Put([]byte(node.Handle), payload); err != nil {
			return err
		}
		order, err := b.bucket(tx, boltOrder)
		if err != nil {
			return err
		}
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		return order.Put(itob(seq), []byte(node.Handle))
	})
	if err != nil {
		return "", err
	}
	return node.Handle, nil
}

func (b *boltSink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if rel == "" {
		return &ValidationError{Message: "relation is required"}
	}
	payload, err := json.Marshal(Edge{From: from, Relation: rel, To: to})
	if err != nil {
		return errm.Wrap(err, "encode edge")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		nodes, err := b.bucket(tx, boltNodes)
		if err != nil {
			return err
		}
		for _, h := range []Handle{from, to} {
			if nodes.Get([]byte(h)) == nil {
				return &NotFoundError{Resource: "node", Key: string(h)}
			}
		}
		edges, err := b.bucket(tx, boltEdges)
		if err != nil {
			return err
		}
		seq, err := edges.NextSequence()
		if err != nil {
			return err
		}
		return edges.Put(itob(seq), payload)
	})
}

func (b *boltSink) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := b.db.View(func(tx *bolt.Tx) error {
		nodes, err := b.bucket(tx, boltNodes)
		if err != nil {
			return err
		}
		order, err := b.bucket(tx, boltOrder)
		if err != nil {
			return err
		}
		edges, err := b.bucket(tx, boltEdges)
		if err != nil {
			return err
		}

		if err := order.ForEach(func(_, handle []byte) error {
			var n Node
			if err := json.Unmarshal(nodes.Get(handle), &n); err != nil {
				return err
			}
			out.Nodes = append(out.Nodes, n)
			return nil
		}); err != nil {
			return err
		}
		return edges.ForEach(func(_, v []byte) error {
			var e Edge
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out.Edges = append(out.Edges, e)
			return nil
		})
	})
	return out, err
}

// itob encodes a sequence big-endian so Bolt iterates it in order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
