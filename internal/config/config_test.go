package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onexay/gitgraph/internal/storage"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.APIAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 64, cfg.CacheSize)
	require.Equal(t, 4, cfg.Scan.Parallelism)
	require.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
	require.Equal(t, storage.ArchiveMemory, cfg.Archive.Backend)
	require.Equal(t, "localhost:6379", cfg.Storage.KeyDB.Addr)

	loc, err := cfg.Scan.Location()
	require.NoError(t, err)
	require.Equal(t, time.Local, loc)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("API_ADDR", ":9090")
	t.Setenv("STORAGE_BACKEND", "BOLT")
	t.Setenv("STORAGE_BOLT_PATH", "/tmp/graph.db")
	t.Setenv("SCAN_RANGE", "v1.0..HEAD")
	t.Setenv("SCAN_SUFFIXES", ".adoc,.puml")
	t.Setenv("SCAN_TIMEZONE", "UTC")
	t.Setenv("KEYDB_DB", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.APIAddr)
	require.Equal(t, storage.BackendBolt, cfg.Storage.Backend)
	require.Equal(t, "/tmp/graph.db", cfg.Storage.BoltPath)
	require.Equal(t, "v1.0..HEAD", cfg.Scan.Range)
	require.Equal(t, []string{".adoc", ".puml"}, cfg.Scan.Suffixes)
	require.Equal(t, 3, cfg.Storage.KeyDB.Database)

	loc, err := cfg.Scan.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_addr: ":7070"
cache_size: 8
scan:
  parallelism: 2
  time_zone: Europe/Berlin
archive:
  backend: bolt
  path: data/dumps.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.APIAddr)
	require.Equal(t, 8, cfg.CacheSize)
	require.Equal(t, 2, cfg.Scan.Parallelism)
	require.Equal(t, storage.ArchiveBolt, cfg.Archive.Backend)
	require.Equal(t, "data/dumps.db", cfg.Archive.Path)
}

func TestLoadInvalidTimeZone(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCAN_TIMEZONE", "Mars/Olympus")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=DEBUG\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("LOG_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}
