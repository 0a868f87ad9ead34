package service

import (
	"errors"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/onexay/gitgraph/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler builds the REST routes for the service.
func Handler(svc *Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/swagger") {
			svc.handleSwagger(w, r, strings.TrimPrefix(r.URL.Path, "/swagger"))
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api/v1")
		if path == "" || path == "/" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
			return
		}

		switch {
		case strings.HasPrefix(path, "/scans"):
			svc.handleScans(w, r, strings.TrimPrefix(path, "/scans"))
		case strings.HasPrefix(path, "/commits"):
			svc.handleCommits(w, r, strings.TrimPrefix(path, "/commits"))
		case path == "/authors":
			svc.handleList(w, r, func(name string) (any, error) { return svc.Authors(name) })
		case path == "/files":
			svc.handleList(w, r, func(name string) (any, error) { return svc.Files(name) })
		case path == "/branches":
			svc.handleList(w, r, func(name string) (any, error) { return svc.Branches(name) })
		case path == "/tags":
			svc.handleList(w, r, func(name string) (any, error) { return svc.Tags(name) })
		case path == "/diagnostics":
			svc.handleList(w, r, func(name string) (any, error) { return svc.Diagnostics(name) })
		case strings.HasPrefix(path, "/dumps"):
			svc.handleDumps(w, r, strings.TrimPrefix(path, "/dumps"))
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		}
	})
}

func (s *Service) handleScans(w http.ResponseWriter, r *http.Request, tail string) {
	if tail != "" && tail != "/" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	type request struct {
		Path  string        `json:"path"`
		Range string        `json:"range,omitempty"`
		Batch []ScanRequest `json:"batch,omitempty"`
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if len(req.Batch) > 0 {
		results, err := s.ScanAll(r.Context(), req.Batch)
		status := http.StatusCreated
		if err != nil {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, results)
		return
	}

	result, err := s.Scan(r.Context(), ScanRequest{Path: req.Path, Range: req.Range})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Service) handleCommits(w http.ResponseWriter, r *http.Request, tail string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	name := r.URL.Query().Get("name")

	sha := strings.Trim(tail, "/")
	if sha == "" {
		commits, err := s.Commits(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, commits)
		return
	}

	commit, err := s.Commit(name, sha)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request, list func(name string) (any, error)) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	items, err := list(r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleDumps serves GET /dumps (keys) and GET /dumps/{key} (text).
func (s *Service) handleDumps(w http.ResponseWriter, r *http.Request, tail string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	name := r.URL.Query().Get("name")

	key := strings.Trim(tail, "/")
	if key == "" {
		keys, err := s.Dumps(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)
		return
	}

	dump, err := s.Dump(r.Context(), name, key)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dump))
}

func writeError(w http.ResponseWriter, err error) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
		return
	}

	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
		return
	}

	var validation *storage.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
