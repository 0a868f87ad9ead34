package storage

import (
	"context"
	"strings"

	"github.com/maxbolgarin/errm"
)

// Archive persists rendered graph dumps outside of the sink.
type Archive interface {
	Store(ctx context.Context, repo, hash string, data []byte) error
	Fetch(ctx context.Context, repo, hash string) ([]byte, error)
	Remove(ctx context.Context, repo, hash string) error
	// List returns the stored keys of repo in ascending order.
	List(ctx context.Context, repo string) ([]string, error)
	Close() error
}

// Backend enumerates supported sink stores.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendBolt     Backend = "bolt"
	BackendBadger   Backend = "badger"
	BackendKeyDB    Backend = "keydb"
	BackendPostgres Backend = "postgres"
	BackendNeo4j    Backend = "neo4j"
)

// ArchiveBackend enumerates supported archives.
type ArchiveBackend string

const (
	ArchiveMemory ArchiveBackend = "memory"
	ArchiveBolt   ArchiveBackend = "bolt"
	ArchiveS3     ArchiveBackend = "s3"
)

// Options selects and configures the sink store.
type Options struct {
	Backend     Backend     `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
	BoltPath    string      `yaml:"bolt_path" env:"STORAGE_BOLT_PATH" env-default:"data/graph.db"`
	BadgerPath  string      `yaml:"badger_path" env:"STORAGE_BADGER_PATH" env-default:"data/badger"`
	KeyDB       Config      `yaml:"keydb"`
	PostgresDSN string      `yaml:"postgres_dsn" env:"STORAGE_POSTGRES_DSN"`
	Neo4j       Neo4jConfig `yaml:"neo4j"`
}

// ArchiveOptions selects and configures the dump archive.
type ArchiveOptions struct {
	Backend ArchiveBackend `yaml:"backend" env:"ARCHIVE_BACKEND" env-default:"memory"`
	Path    string         `yaml:"path" env:"ARCHIVE_PATH" env-default:"data/archive.db"`
	S3      S3Config       `yaml:"s3"`
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, opts Options) (Store, error) {
	switch Backend(strings.ToLower(string(opts.Backend))) {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendBolt:
		return NewBoltStore(opts.BoltPath)
	case BackendBadger:
		return NewBadgerStore(BadgerConfig{Path: opts.BadgerPath})
	case BackendKeyDB:
		return NewKeyDBStore(opts.KeyDB)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.PostgresDSN)
	case BackendNeo4j:
		return NewNeo4jStore(ctx, opts.Neo4j)
	default:
		return nil, errm.New("unknown storage backend " + string(opts.Backend))
	}
}

// OpenArchive connects the configured archive.
func OpenArchive(ctx context.Context, opts ArchiveOptions) (Archive, error) {
	switch ArchiveBackend(strings.ToLower(string(opts.Backend))) {
	case ArchiveMemory, "":
		return NewMemoryArchive(), nil
	case ArchiveBolt:
		return NewBoltArchive(opts.Path)
	case ArchiveS3:
		return NewS3Archive(ctx, opts.S3)
	default:
		return nil, errm.New("unknown archive backend " + string(opts.Backend))
	}
}
