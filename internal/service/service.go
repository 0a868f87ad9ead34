package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/onexay/gitgraph/internal/config"
	"github.com/onexay/gitgraph/internal/graph"
	"github.com/onexay/gitgraph/internal/history"
	"github.com/onexay/gitgraph/internal/storage"
	"github.com/onexay/gitgraph/internal/types"
)

// LatestDump is the archive key holding the most recent dump of a repository.
const LatestDump = "latest"

const scanKeyLayout = "20060102T150405.000Z"

// Service runs scans and keeps their results queryable.
type Service struct {
	store   storage.Store
	archive storage.Archive
	scan    config.ScanConfig
	loc     *time.Location
	cache   *lru.Cache[string, *graph.Graph]
	pool    *ants.Pool
	clock   func() time.Time
	log     logze.Logger

	// one scan per repository at a time
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// ScanRequest names a repository on disk. Range overrides the configured
// range when set.
type ScanRequest struct {
	Path  string `json:"path"`
	Range string `json:"range,omitempty"`
}

// ScanResult summarises one finished scan.
type ScanResult struct {
	Repository  string             `json:"repository"`
	Path        string             `json:"path"`
	Stats       graph.Stats        `json:"stats"`
	Emitted     graph.EmitStats    `json:"emitted"`
	Diagnostics []graph.Diagnostic `json:"diagnostics"`
	ArchiveKey  string             `json:"archiveKey,omitempty"`
	Diff        storage.DumpDiff   `json:"diff"`
	ScannedAt   time.Time          `json:"scannedAt"`
	Error       string             `json:"error,omitempty"`
}

// New opens the configured store and archive.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	store, err := storage.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errm.Wrap(err, "open store")
	}
	archive, err := storage.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		_ = store.Close()
		return nil, errm.Wrap(err, "open archive")
	}
	svc, err := NewWith(store, archive, cfg.Scan, cfg.CacheSize)
	if err != nil {
		_ = archive.Close()
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// NewWith wires a service around an existing store and archive.
func NewWith(store storage.Store, archive storage.Archive, scan config.ScanConfig, cacheSize int) (*Service, error) {
	loc, err := scan.Location()
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *graph.Graph](lang.Check(cacheSize, 64))
	if err != nil {
		return nil, errm.Wrap(err, "create cache")
	}
	pool, err := ants.NewPool(lang.Check(scan.Parallelism, 4))
	if err != nil {
		return nil, errm.Wrap(err, "create pool")
	}
	return &Service{
		store:   store,
		archive: archive,
		scan:    scan,
		loc:     loc,
		cache:   cache,
		pool:    pool,
		clock:   time.Now,
		log:     logze.With("component", "service"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the pool, the archive and the store.
func (s *Service) Close() error {
	s.pool.Release()
	return errors.Join(s.archive.Close(), s.store.Close())
}

// Scan locates the repository at req.Path and scans it with go-git.
func (s *Service) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	if req.Path == "" {
		return ScanResult{}, &storage.ValidationError{Message: "path is required"}
	}
	loc, err := history.Locate(req.Path)
	if err != nil {
		if errors.Is(err, history.ErrNotRepository) {
			return ScanResult{}, &storage.ValidationError{Message: req.Path + " is not a git repository"}
		}
		return ScanResult{}, err
	}
	reader, err := history.OpenGitReader(loc, lang.Check(req.Range, s.scan.Range))
	if err != nil {
		return ScanResult{}, err
	}
	return s.ScanReader(ctx, types.Repository{Name: loc.Name, Path: loc.GitDir}, reader)
}

// ScanReader builds the graph of repo from reader, emits it to the store,
// archives its dump and diffs it against the previous dump.
func (s *Service) ScanReader(ctx context.Context, repo types.Repository, reader history.Reader) (ScanResult, error) {
	lock := s.repoLock(repo.Name)
	lock.Lock()
	defer lock.Unlock()

	log := s.log.WithFields("repository", repo.Name)
	started := s.clock()

	builder := graph.NewBuilder(
		graph.WithLocation(s.loc),
		graph.WithAcceptedSuffixes(s.scan.Suffixes...),
		graph.WithLogger(log),
	)
	g, err := builder.BuildFrom(ctx, repo, reader)
	if err != nil {
		return ScanResult{}, errm.Wrap(err, "build graph")
	}

	sink, err := s.store.Sink(ctx, repo.Name)
	if err != nil {
		return ScanResult{}, errm.Wrap(err, "open sink")
	}
	emitted, err := graph.Emit(ctx, g, sink)
	if err != nil {
		return ScanResult{}, errm.Wrap(err, "emit graph")
	}

	dump := graph.RenderString(g)
	prevKey, previous, err := s.previousDump(ctx, repo.Name)
	if err != nil {
		return ScanResult{}, err
	}
	key := started.UTC().Format(scanKeyLayout)
	for _, k := range []string{key, LatestDump} {
		if err := s.archive.Store(ctx, repo.Name, k, []byte(dump)); err != nil {
			return ScanResult{}, errm.Wrap(err, "archive dump")
		}
	}

	s.cache.Add(repo.Name, g)

	result := ScanResult{
		Repository:  repo.Name,
		Path:        repo.Path,
		Stats:       g.Stats(),
		Emitted:     emitted,
		Diagnostics: g.Diagnostics(),
		ArchiveKey:  key,
		Diff:        storage.DiffDumps(prevKey, previous, key, dump),
		ScannedAt:   started,
	}
	log.Info("scan finished",
		"entities", emitted.Entities, "links", emitted.Links,
		"diagnostics", len(result.Diagnostics), "added", result.Diff.Added, "removed", result.Diff.Removed)
	return result, nil
}

// ScanAll scans every request on the worker pool. Each scan uses its own
// reader, builder and sink. Results keep the request order; failed scans
// carry their error and are joined into the returned error.
func (s *Service) ScanAll(ctx context.Context, reqs []ScanRequest) ([]ScanResult, error) {
	results := make([]ScanResult, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			res, err := s.Scan(ctx, req)
			if err != nil {
				res = ScanResult{Path: req.Path, Error: err.Error()}
				errs[i] = errm.Wrap(err, req.Path)
			}
			results[i] = res
		})
		if err != nil {
			wg.Done()
			results[i] = ScanResult{Path: req.Path, Error: err.Error()}
			errs[i] = errm.Wrap(err, "submit "+req.Path)
		}
	}
	wg.Wait()
	return results, errors.Join(errs...)
}

// previousDump returns the newest archived scan of name, or empty strings
// when it was never scanned.
func (s *Service) previousDump(ctx context.Context, name string) (string, string, error) {
	keys, err := s.archive.List(ctx, name)
	if err != nil {
		return "", "", errm.Wrap(err, "list dumps")
	}
	keys = slices.DeleteFunc(keys, func(k string) bool { return k == LatestDump })
	if len(keys) == 0 {
		return "", "", nil
	}
	slices.Sort(keys)
	key := keys[len(keys)-1]
	data, err := s.archive.Fetch(ctx, name, key)
	if err != nil {
		return "", "", errm.Wrap(err, "fetch dump "+key)
	}
	return key, string(data), nil
}

func (s *Service) repoLock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}

// Graph returns the cached result of the last scan of name.
func (s *Service) Graph(name string) (*graph.Graph, error) {
	if name == "" {
		return nil, &storage.ValidationError{Message: "name query parameter required"}
	}
	g, ok := s.cache.Get(name)
	if !ok {
		return nil, &storage.NotFoundError{Resource: "repository", Key: name}
	}
	return g, nil
}

// Dump returns the archived dump of name under key, LatestDump by default.
func (s *Service) Dump(ctx context.Context, name, key string) (string, error) {
	if name == "" {
		return "", &storage.ValidationError{Message: "name query parameter required"}
	}
	data, err := s.archive.Fetch(ctx, name, lang.Check(key, LatestDump))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Dumps lists the archive keys of name.
func (s *Service) Dumps(ctx context.Context, name string) ([]string, error) {
	if name == "" {
		return nil, &storage.ValidationError{Message: "name query parameter required"}
	}
	return s.archive.List(ctx, name)
}
