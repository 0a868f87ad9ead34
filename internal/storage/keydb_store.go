package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/maxbolgarin/errm"
	redis "github.com/redis/go-redis/v9"

	"github.com/onexay/gitgraph/internal/types"
)

const keydbPrefix = "gitgraph"

// Config defines KeyDB connection settings.
type Config struct {
	Addr     string `yaml:"addr" env:"KEYDB_ADDR" env-default:"localhost:6379"`
	Username string `yaml:"username" env:"KEYDB_USERNAME"`
	Password string `yaml:"password" env:"KEYDB_PASSWORD"`
	Database int    `yaml:"db" env:"KEYDB_DB" env-default:"0"`
}

// KeyDBStore keeps namespaces in KeyDB (or any Redis compatible server).
// A namespace uses one string key per node plus two lists holding the
// creation order and the edges.
type KeyDBStore struct {
	client *redis.Client
}

// NewKeyDBStore initializes a Store backed by KeyDB.
func NewKeyDBStore(cfg Config) (*KeyDBStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errm.Wrap(err, "connect to keydb")
	}

	return &KeyDBStore{client: client}, nil
}

func (s *KeyDBStore) Sink(ctx context.Context, namespace string) (Sink, error) {
	if namespace == "" {
		return nil, &ValidationError{Message: "namespace is required"}
	}
	sink := &keydbSink{client: s.client, namespace: namespace}
	if err := sink.reset(ctx); err != nil {
		return nil, errm.Wrap(err, "reset namespace "+namespace)
	}
	return sink, nil
}

func (s *KeyDBStore) Close() error {
	return s.client.Close()
}

type keydbSink struct {
	client    *redis.Client
	namespace string
}

func nodeKey(ns string, h Handle) string {
	return keydbPrefix + ":" + ns + ":node:" + string(h)
}

func orderKey(ns string) string {
	return keydbPrefix + ":" + ns + ":order"
}

func edgesKey(ns string) string {
	return keydbPrefix + ":" + ns + ":edges"
}

// reset deletes every node listed in the order list, then both lists.
func (k *keydbSink) reset(ctx context.Context) error {
	handles, err := k.client.LRange(ctx, orderKey(k.namespace), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(handles)+2)
	for _, h := range handles {
		keys = append(keys, nodeKey(k.namespace, Handle(h)))
	}
	keys = append(keys, orderKey(k.namespace), edgesKey(k.namespace))
	return k.client.Del(ctx, keys...).Err()
}

func (k *keydbSink) Create(ctx context.Context, e types.Entity) (Handle, error) {
	node, err := newNode(k.namespace, e)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(node)
	if err != nil {
		return "", errm.Wrap(err, "encode node")
	}

	ok, err := k.client.SetNX(ctx, nodeKey(k.namespace, node.Handle), payload, 0).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ConflictError{Resource: string(node.Kind), Key: node.Key}
	}
	if err := k.client.RPush(ctx, orderKey(k.namespace), string(node.Handle)).Err(); err != nil {
		return "", err
	}
	return node.Handle, nil
}

func (k *keydbSink) Link(ctx context.Context, from Handle, rel types.Relation, to Handle) error {
	if rel == "" {
		return &ValidationError{Message: "relation is required"}
	}
	for _, h := range []Handle{from, to} {
		exists, err := k.client.Exists(ctx, nodeKey(k.namespace, h)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return &NotFoundError{Resource: "node", Key: string(h)}
		}
	}
	payload, err := json.Marshal(Edge{From: from, Relation: rel, To: to})
	if err != nil {
		return errm.Wrap(err, "encode edge")
	}
	return k.client.RPush(ctx, edgesKey(k.namespace), payload).Err()
}

func (k *keydbSink) Snapshot(ctx context.Context) (Snapshot, error) {
	var out Snapshot
	handles, err := k.client.LRange(ctx, orderKey(k.namespace), 0, -1).Result()
	if err != nil {
		return out, err
	}
	if len(handles) > 0 {
		keys := make([]string, 0, len(handles))
		for _, h := range handles {
			keys = append(keys, nodeKey(k.namespace, Handle(h)))
		}
		values, err := k.client.MGet(ctx, keys...).Result()
		if err != nil {
			return out, err
		}
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				return out, &NotFoundError{Resource: "node", Key: handles[i]}
			}
			var n Node
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				return out, err
			}
			out.Nodes = append(out.Nodes, n)
		}
	}

	edges, err := k.client.LRange(ctx, edgesKey(k.namespace), 0, -1).Result()
	if err != nil {
		return out, err
	}
	for _, raw := range edges {
		var e Edge
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return out, err
		}
		out.Edges = append(out.Edges, e)
	}
	return out, nil
}
