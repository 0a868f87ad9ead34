package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"

	"github.com/onexay/gitgraph/internal/types"
)

// BadgerConfig controls the embedded Badger database.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// badgerLogger routes badger's own logging into logze.
type badgerLogger struct {
	log logze.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) { l.log.Error(fmt.Sprintf(format, args...)) }
func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}
func (l badgerLogger) Infof(format string, args ...any)  { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l badgerLogger) Debugf(format string, args ...any) { l.log.Debug(fmt.Sprintf(format, args...)) }

// BadgerStore keeps namespaces under key prefixes of one Badger database:
//
//	<ns>/n/<handle>   node
//	<ns>/o/<seq>      creation order -> handle
//	<ns>/e/<seq>      edge
type BadgerStore struct {
	db   *badger.DB
	once sync.Once
}

// NewBadgerStore opens the database described by cfg.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errm.New("badger path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, errm.Wrap(err, "create badger directory")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: logze.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errm.Wrap(err, "open badger")
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.db.DropPrefix([]byte(namespace + "/")); err != nil {
		return nil, errm.Wrap(err, "reset namespace "+namespace)
	}
	return &badgerSink{db: s.db, namespace: namespace}, nil
}

func (s *BadgerStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

type badgerSink struct {
	db        *badger.DB
	namespace string
	nodeSeq   atomic.Uint64
	edgeSeq   atomic.Uint64
}

func (b *badgerSink) nodeKey(h Handle) []byte {
	return []byte(b.namespace + "/n/" + string(h))
}

func (b *badgerSink) seqKey(section string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s/%s/%020d", b.namespace, section, seq))
}

func (b *badgerSink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	node, err := newNode(b.namespace, e)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return "", errm.Wrap(err, "encode node")
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(b.nodeKey(node.Handle))
		switch {
		case err == nil:
			return &ConflictError{Resource: string(node.Kind), Key: node.Key}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(b.nodeKey(node.Handle), payload); err != nil {
			return err
		}
		return txn.Set(b.seqKey("o", b.nodeSeq.Add(1)), []byte(node.Handle))
	})
	if err != nil {
		return "", err
	}
	return node.Handle, nil
}

func (b *badgerSink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rel == "" {
		return &ValidationError{Message: "relation is required"}
	}
	payload, err := json.Marshal(Edge{From: from, Relation: rel, To: to})
	if err != nil {
		return errm.Wrap(err, "encode edge")
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, h := range []Handle{from, to} {
			if _, err := txn.Get(b.nodeKey(h)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return &NotFoundError{Resource: "node", Key: string(h)}
				}
				return err
			}
		}
		return txn.Set(b.seqKey("e", b.edgeSeq.Add(1)), payload)
	})
}

func (b *badgerSink) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		handles, err := scanPrefix(txn, []byte(b.namespace+"/o/"))
		if err != nil {
			return err
		}
		for _, h := range handles {
			item, err := txn.Get(b.nodeKey(Handle(h)))
			if err != nil {
				return err
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var n Node
			if err := json.Unmarshal(raw, &n); err != nil {
				return err
			}
			out.Nodes = append(out.Nodes, n)
		}

		edges, err := scanPrefix(txn, []byte(b.namespace+"/e/"))
		if err != nil {
			return err
		}
		for _, raw := range edges {
			var e Edge
			if err := json.Unmarshal(raw, &e); err != nil {
				return err
			}
			out.Edges = append(out.Edges, e)
		}
		return nil
	})
	return out, err
}

// scanPrefix returns the values under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
