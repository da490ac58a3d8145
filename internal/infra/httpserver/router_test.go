package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apprelay "github.com/bryanwahyu/csvask/internal/application/relay"
	"github.com/bryanwahyu/csvask/internal/domain/relay"
	"github.com/bryanwahyu/csvask/internal/infra/storage"
	"github.com/bryanwahyu/csvask/internal/infra/webhook"
	"github.com/bryanwahyu/csvask/internal/middleware"
)

const sampleCSV = "numero;valor\n1;1234,56\n"

type fakeWebhook struct {
	hits   atomic.Int32
	status int
	body   string

	mu        sync.Mutex
	question  string
	filename  string
	requestID string
}

func (h *fakeWebhook) seen() (filename, question, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filename, h.question, h.requestID
}

type testServer struct {
	handler http.Handler
	hook    *fakeWebhook
	metrics *middleware.Metrics
	root    string
}

func newTestServer(t *testing.T, hookStatus int, hookBody string) *testServer {
	t.Helper()

	parent := t.TempDir()
	root := filepath.Join(parent, "csvs")
	require.NoError(t, os.Mkdir(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "202401_NFs_Cabecalho.csv"), []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "outside.csv"), []byte("secret"), 0o644))

	hook := &fakeWebhook{status: hookStatus, body: hookBody}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hook.hits.Add(1)
		hook.mu.Lock()
		if _, fh, err := r.FormFile("file"); err == nil {
			hook.filename = fh.Filename
		}
		hook.question = r.FormValue("question")
		hook.requestID = r.Header.Get(middleware.RequestIDHeader)
		hook.mu.Unlock()
		w.WriteHeader(hook.status)
		io.WriteString(w, hook.body)
	}))
	t.Cleanup(srv.Close)

	catalog, err := storage.NewLocalCatalog(root)
	require.NoError(t, err)
	client, err := webhook.New(webhook.Config{
		URL:             srv.URL,
		Timeout:         5 * time.Second,
		RequestIDHeader: middleware.RequestIDHeader,
		RequestID:       middleware.GetRequestID,
	})
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := &apprelay.Service{Catalog: catalog, Analyzer: client, Log: log, MaxFileBytes: 1 << 20}
	metrics := middleware.NewMetrics()

	return &testServer{
		handler: NewRouter(svc, Options{
			Logger:         log,
			Metrics:        metrics,
			AllowedOrigins: []string{"http://localhost:3000"},
			Checkers:       map[string]middleware.HealthChecker{"catalog": &middleware.CatalogHealthChecker{Catalog: catalog}},
		}),
		hook:    hook,
		metrics: metrics,
		root:    root,
	}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAnalyze_Success(t *testing.T) {
	s := newTestServer(t, http.StatusOK, " R$ 1.234,56 total\n")

	rec := s.do(http.MethodPost, "/api/analyze", `{"path":"202401_NFs_Cabecalho.csv","question":"total value?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"answer": "R$ 1.234,56 total"}, decodeBody(t, rec))
	assert.EqualValues(t, 1, s.hook.hits.Load())
	filename, question, requestID := s.hook.seen()
	assert.Equal(t, "202401_NFs_Cabecalho.csv", filename)
	assert.Equal(t, "total value?", question)
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), requestID)
	assert.EqualValues(t, 1, s.metrics.RelaysTotal.Load())
}

func TestAnalyze_BlankAnswerFallsBack(t *testing.T) {
	for name, body := range map[string]string{"empty": "", "whitespace": " \n\t  \r\n"} {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, http.StatusOK, body)
			rec := s.do(http.MethodPost, "/api/analyze", `{"path":"202401_NFs_Cabecalho.csv","question":"q"}`)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, relay.FallbackAnswer, decodeBody(t, rec)["answer"])
		})
	}
}

func TestAnalyze_MissingInput(t *testing.T) {
	for name, body := range map[string]string{
		"empty object":     `{}`,
		"empty path":       `{"path":"","question":"x"}`,
		"empty question":   `{"path":"202401_NFs_Cabecalho.csv","question":""}`,
		"blank question":   `{"path":"202401_NFs_Cabecalho.csv","question":"   "}`,
		"blank path":       `{"path":"  ","question":"x"}`,
		"missing path":     `{"question":"x"}`,
		"missing question": `{"path":"202401_NFs_Cabecalho.csv"}`,
		"missing file too": `{"path":"missing.csv"}`,
		"malformed json":   `{"path":`,
		"wrong types":      `{"path":1,"question":true}`,
		"no body":          ``,
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, http.StatusOK, "unused")
			rec := s.do(http.MethodPost, "/api/analyze", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]string{"error": "path and question are required"}, decodeBody(t, rec))
			assert.Zero(t, s.hook.hits.Load())
		})
	}
}

func TestAnalyze_FileNotFound(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "unused")

	rec := s.do(http.MethodPost, "/api/analyze", `{"path":"missing.csv","question":"x"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]string{"error": "CSV file not found"}, decodeBody(t, rec))
	assert.Zero(t, s.hook.hits.Load())
	assert.EqualValues(t, 1, s.metrics.RelaysRejected.Load())
}

func TestAnalyze_TraversalRejected(t *testing.T) {
	for _, path := range []string{
		"../outside.csv",
		"./../outside.csv",
		"sub/../../outside.csv",
		"/etc/passwd",
		"..",
	} {
		t.Run(path, func(t *testing.T) {
			s := newTestServer(t, http.StatusOK, "unused")
			body, _ := json.Marshal(map[string]string{"path": path, "question": "x"})
			rec := s.do(http.MethodPost, "/api/analyze", string(body))
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Zero(t, s.hook.hits.Load())
		})
	}
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			s := newTestServer(t, http.StatusOK, "unused")
			rec := s.do(method, "/api/analyze", `{"path":"202401_NFs_Cabecalho.csv","question":"x"}`)
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
			assert.Equal(t, map[string]string{"error": "method not allowed"}, decodeBody(t, rec))
			assert.Zero(t, s.hook.hits.Load())
			assert.Zero(t, s.metrics.RelaysTotal.Load())
		})
	}
}

func TestAnalyze_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, http.StatusBadGateway, "n8n exploded")

	rec := s.do(http.MethodPost, "/api/analyze", `{"path":"202401_NFs_Cabecalho.csv","question":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeBody(t, rec)["error"]
	assert.True(t, strings.HasPrefix(msg, "internal server error: "), msg)
	assert.Contains(t, msg, "502")
	assert.Contains(t, msg, "n8n exploded")
	assert.EqualValues(t, 1, s.hook.hits.Load())
	assert.EqualValues(t, 1, s.metrics.RelaysFailed.Load())
}

func TestAnalyze_TooLarge(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "unused")
	big := strings.Repeat("a;b\n", (1<<20)/4+1)
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "big.csv"), []byte(big), 0o644))

	rec := s.do(http.MethodPost, "/api/analyze", `{"path":"big.csv","question":"x"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, map[string]string{"error": "CSV file too large"}, decodeBody(t, rec))
	assert.Zero(t, s.hook.hits.Load())
}

func TestAnalyze_CancelledRequest(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "late")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"path":"202401_NFs_Cabecalho.csv","question":"x"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "context canceled")
	assert.Zero(t, s.hook.hits.Load())
}

func TestListFiles(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "unused")
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "000_first.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.root, "readme.md"), []byte("#"), 0o644))

	rec := s.do(http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Files []relay.FileEntry `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Files, 2)
	assert.Equal(t, "000_first.csv", out.Files[0].Name)
	assert.Equal(t, "202401_NFs_Cabecalho.csv", out.Files[1].Name)
	assert.EqualValues(t, len(sampleCSV), out.Files[1].Size)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "unused")

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"catalog":{"status":"healthy"}`)

	rec = s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"relays_total"`)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, http.StatusOK, "unused")

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Zero(t, s.hook.hits.Load())
}
