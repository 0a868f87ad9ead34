package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onexay/gitgraph/internal/types"
)

func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerScanAndQuery(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := Handler(svc)
	dir := initRepo(t, "project")

	rec := serve(t, h, http.MethodPost, "/api/v1/scans", `{"path":"`+dir+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("scan: %d %s", rec.Code, rec.Body.String())
	}
	var result ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if result.Repository != "project" || result.Stats.Commits != 2 {
		t.Fatalf("unexpected result %+v", result)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/commits?name=project", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("commits: %d", rec.Code)
	}
	var commits []CommitView
	if err := json.Unmarshal(rec.Body.Bytes(), &commits); err != nil {
		t.Fatalf("decode commits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/commits/"+commits[0].SHA+"?name=project", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), commits[0].SHA) {
		t.Fatalf("commit: %d %s", rec.Code, rec.Body.String())
	}

	for _, path := range []string{"/authors", "/files", "/branches", "/tags", "/diagnostics", "/dumps"} {
		rec = serve(t, h, http.MethodGet, "/api/v1"+path+"?name=project", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", path, rec.Code, rec.Body.String())
		}
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/dumps/latest?name=project", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "repository project ") {
		t.Fatalf("dump: %d %q", rec.Code, rec.Body.String())
	}
}

func TestHandlerBatchScan(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := Handler(svc)

	body := `{"batch":[{"path":"` + initRepo(t, "alpha") + `"},{"path":"` + t.TempDir() + `"}]}`
	rec := serve(t, h, http.MethodPost, "/api/v1/scans", body)
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("expected multi status, got %d", rec.Code)
	}
	var results []ScanResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 || results[0].Error != "" || results[1].Error == "" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestHandlerErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := Handler(svc)
	if _, err := svc.ScanReader(context.Background(), types.Repository{Name: "static"}, staticReader()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	cases := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"bad payload", http.MethodPost, "/api/v1/scans", "{", http.StatusBadRequest},
		{"not a repository", http.MethodPost, "/api/v1/scans", `{"path":"` + t.TempDir() + `"}`, http.StatusBadRequest},
		{"scan via get", http.MethodGet, "/api/v1/scans", "", http.StatusMethodNotAllowed},
		{"missing name", http.MethodGet, "/api/v1/commits", "", http.StatusBadRequest},
		{"unknown repository", http.MethodGet, "/api/v1/tags?name=other", "", http.StatusNotFound},
		{"unknown commit", http.MethodGet, "/api/v1/commits/zz?name=static", "", http.StatusNotFound},
		{"unknown dump", http.MethodGet, "/api/v1/dumps/nope?name=static", "", http.StatusNotFound},
		{"unknown resource", http.MethodGet, "/api/v1/blobs", "", http.StatusNotFound},
		{"delete commits", http.MethodDelete, "/api/v1/commits?name=static", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, h, tc.method, tc.target, tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, rec.Code, rec.Body.String())
			}
		})
	}

	rec := serve(t, h, http.MethodGet, "/api/v1/diagnostics?name=static", "")
	if !strings.Contains(rec.Body.String(), `"missing_tag_target"`) {
		t.Fatalf("diagnostics missing: %s", rec.Body.String())
	}
}

func TestHandlerSwagger(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := Handler(svc)

	rec := serve(t, h, http.MethodGet, "/swagger/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "swagger-ui") {
		t.Fatalf("swagger index: %d", rec.Code)
	}
	rec = serve(t, h, http.MethodGet, "/swagger/openapi.yaml", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/commits/{sha}") {
		t.Fatalf("swagger yaml: %d", rec.Code)
	}

	rec = serve(t, h, http.MethodGet, "/swagger/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("swagger json: %d %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		Info  struct{ Title string } `json:"info"`
		Paths map[string]any         `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode openapi json: %v", err)
	}
	if doc.Info.Title != "gitgraph API" || doc.Paths["/dumps/{key}"] == nil {
		t.Fatalf("unexpected openapi document %+v", doc.Info)
	}
}
