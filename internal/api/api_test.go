package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/rnalens/rnalens/internal/api"
	"github.com/rnalens/rnalens/internal/api/handlers"
	"github.com/rnalens/rnalens/internal/config"
	"github.com/rnalens/rnalens/internal/gateway"
	"github.com/rnalens/rnalens/internal/plotcache"
	"github.com/rnalens/rnalens/internal/render"
)

// newTestServer builds the full router over a small differential
// expression database and a temp plot directory.
func newTestServer(t *testing.T) (http.Handler, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rnaseq.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE de_results (gene TEXT, log2fc REAL, padj REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO de_results VALUES ('A', 2.3, 0.01), ('B', -3.1, 0.04), ('C', 0.2, 0.5)`,
	); err != nil {
		t.Fatalf("insert rows: %v", err)
	}

	gw, err := gateway.Open(dbPath, 1000)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	plotDir := filepath.Join(dir, "plots")
	cfg := &config.Config{
		Port:    8080,
		Version: "test",
		Database: config.DatabaseConfig{
			Path:       dbPath,
			RowCeiling: 1000,
		},
		Plots: config.PlotConfig{
			OutputDir:   plotDir,
			PreviewRows: 20,
		},
	}

	h := handlers.New(gw, plotcache.NewRegistry(), render.New(plotDir), cfg.Plots.PreviewRows)
	return api.NewRouter(cfg, h), plotDir
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router http.Handler) string {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("create session: empty session_id")
	}
	return resp.SessionID
}

func TestHealthAndVersion(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, router, http.MethodGet, "/version", nil)
	if w.Code != http.StatusOK {
		t.Errorf("version: status = %d, want %d", w.Code, http.StatusOK)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("test")) {
		t.Errorf("version body = %s, want it to contain %q", w.Body.String(), "test")
	}
}

func TestGetSchema(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schema: status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, want := range []string{"de_results", "gene", "log2fc", "padj"} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Errorf("schema body missing %q: %s", want, body)
		}
	}
}

func TestQueryThenPlot(t *testing.T) {
	router, plotDir := newTestServer(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/query", map[string]any{
		"query":  "SELECT gene, log2fc, padj FROM de_results",
		"intent": "differential expression overview",
		"tables": []string{"de_results"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("query: status = %d, body = %s", w.Code, w.Body.String())
	}
	var queryResp struct {
		RowCount  int  `json:"row_count"`
		Truncated bool `json:"truncated"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &queryResp); err != nil {
		t.Fatalf("decode query response: %v", err)
	}
	if queryResp.RowCount != 3 {
		t.Errorf("row_count = %d, want 3", queryResp.RowCount)
	}
	if queryResp.Truncated {
		t.Error("truncated = true for a 3-row result")
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/plot", map[string]any{
		"kind": "volcano",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("plot: status = %d, body = %s", w.Code, w.Body.String())
	}
	var plotResp struct {
		Artifact struct {
			Filename string `json:"filename"`
			Points   int    `json:"points"`
		} `json:"artifact"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &plotResp); err != nil {
		t.Fatalf("decode plot response: %v", err)
	}
	if plotResp.Artifact.Points != 3 {
		t.Errorf("points = %d, want 3", plotResp.Artifact.Points)
	}
	if plotResp.URL != "/plots/"+plotResp.Artifact.Filename {
		t.Errorf("url = %q, want /plots/%s", plotResp.URL, plotResp.Artifact.Filename)
	}
	if _, err := os.Stat(filepath.Join(plotDir, plotResp.Artifact.Filename)); err != nil {
		t.Errorf("artifact not on disk: %v", err)
	}

	// The artifact is served back under /plots/
	w = doJSON(t, router, http.MethodGet, plotResp.URL, nil)
	if w.Code != http.StatusOK {
		t.Errorf("serve artifact: status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestQuery_ForbiddenSQL(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/query", map[string]any{
		"query": "DELETE FROM de_results",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("forbidden SQL: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("query_error")) {
		t.Errorf("body = %s, want kind query_error", w.Body.String())
	}
}

func TestPlot_BeforeAnyQuery(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/plot", map[string]any{
		"kind": "volcano",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("plot without data: status = %d, want %d", w.Code, http.StatusConflict)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("no_data")) {
		t.Errorf("body = %s, want kind no_data", w.Body.String())
	}
}

func TestPlot_UnknownKind(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router)

	doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/query", map[string]any{
		"query": "SELECT gene, log2fc, padj FROM de_results",
	})

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/plot", map[string]any{
		"kind": "pie",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("unsupported_plot_kind")) {
		t.Errorf("body = %s, want kind unsupported_plot_kind", w.Body.String())
	}
}

func TestUnknownSession(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/nope/query", map[string]any{
		"query": "SELECT gene FROM de_results",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteSession(t *testing.T) {
	router, _ := newTestServer(t)
	id := createSession(t, router)

	w := doJSON(t, router, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete session: status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// Deleted sessions behave like unknown ones
	w = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+id+"/query", map[string]any{
		"query": "SELECT gene FROM de_results",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("query after delete: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestSessionIsolation(t *testing.T) {
	router, _ := newTestServer(t)
	a := createSession(t, router)
	b := createSession(t, router)

	doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+a+"/query", map[string]any{
		"query": "SELECT gene, log2fc, padj FROM de_results",
	})

	// Session b has no data of its own
	w := doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+b+"/plot", map[string]any{
		"kind": "volcano",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("other session plot: status = %d, want %d", w.Code, http.StatusConflict)
	}
}
