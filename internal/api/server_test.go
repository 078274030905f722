package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/binz0209/vihis/internal/config"
	"github.com/binz0209/vihis/internal/embed"
	"github.com/binz0209/vihis/internal/ingest"
	"github.com/binz0209/vihis/internal/retrieve"
	"github.com/binz0209/vihis/internal/store/memstore"
)

const testKey = "secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memstore.New()
	if err := st.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	cfg := config.Config{
		APIKey:                testKey,
		CORSOrigins:           []string{"*"},
		EmbedProvider:         "none",
		MaxUploadBytes:        1 << 20,
		ChunkTokens:           400,
		OverlapTokens:         60,
		HeaderFooterThreshold: 0.7,
	}

	ret := retrieve.New(st, nil, log, retrieve.Options{})
	p := ingest.NewPipeline(st, embed.Disabled{}, log, ingest.PipelineOptions{MaxConcurrentEmbed: 2})
	orch := ingest.NewOrchestrator(p, st, nil, log, ingest.OrchestratorOptions{WorkerCount: 1, MaxQueueSize: 4})
	orch.OnIngested(func(string) { ret.Invalidate() })
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	srv := httptest.NewServer(NewServer(Deps{
		Orchestrator: orch,
		Retriever:    ret,
		Sources:      st,
		EmbedStats:   embed.NewLatencyStats(time.Hour),
	}, log, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func uploadRequest(t *testing.T, url, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, url+"/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stats/embed", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, body := do(t, req)
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "invalid api key" {
		t.Errorf("expected 401 invalid api key, got %d %v", resp.StatusCode, body)
	}
}

func TestIngestThenRetrieve(t *testing.T) {
	srv := newTestServer(t)
	content := "Chiến thắng Bạch Đằng năm 938 do Ngô Quyền lãnh đạo.\n\nNăm 939 Ngô Quyền xưng vương, đóng đô ở Cổ Loa."

	resp, body := do(t, uploadRequest(t, srv.URL, "ngo-quyen.txt", content, map[string]string{"title": "Ngô Quyền"}))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %v", resp.StatusCode, body)
	}
	jobID, _ := body["job_id"].(string)
	sourceID, _ := body["source_id"].(string)
	if jobID == "" || sourceID == "" {
		t.Fatalf("expected job and source ids, got %v", body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/ingest/"+jobID+"/status", nil)
		_, status := do(t, req)
		if status["status"] == string(ingest.StatusCompleted) {
			break
		}
		if status["status"] == string(ingest.StatusFailed) || time.Now().After(deadline) {
			t.Fatalf("job did not complete: %v", status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/retrieve", strings.NewReader(`{"question":"Ngô Quyền","k":3,"window":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, body = do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	frags, _ := body["fragments"].([]any)
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %v", body)
	}
	first := frags[0].(map[string]any)
	if first["label"] != "Ngô Quyền, trang 1" {
		t.Errorf("expected citation label, got %v", first["label"])
	}
	if body["mode"] != string(retrieve.ModeIndex) {
		t.Errorf("expected index mode, got %v", body["mode"])
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/sources/"+sourceID+"/fragments", nil)
	resp, body = do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if list, _ := body["fragments"].([]any); len(list) != 1 {
		t.Errorf("expected 1 fragment for source, got %v", body["fragments"])
	}
}

func TestIngest_Validation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		want     int
	}{
		{"unsupported", "virus.exe", nil, http.StatusBadRequest},
		{"overlap too large", "a.txt", map[string]string{"chunk_tokens": "100", "overlap_tokens": "100"}, http.StatusBadRequest},
		{"bad threshold", "a.txt", map[string]string{"threshold": "1.5"}, http.StatusBadRequest},
		{"ok", "a.txt", map[string]string{"chunk_tokens": "200", "threshold": "0.5"}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, uploadRequest(t, srv.URL, tt.filename, "Nội dung.", tt.fields))
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d %v", tt.want, resp.StatusCode, body)
			}
		})
	}
}

func TestRetrieve_Validation(t *testing.T) {
	srv := newTestServer(t)
	for _, payload := range []string{`{"question":"  "}`, `{"question":"a","k":0}`, `{"question":"a","window":9}`, `not json`} {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/retrieve", strings.NewReader(payload))
		resp, _ := do(t, req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", payload, resp.StatusCode)
		}
	}
}

func TestSourceNotFound(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sources/missing/fragments", nil)
	resp, _ := do(t, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestJobNotFound(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/ingest/nope/status", nil)
	resp, _ := do(t, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestEmbedStats(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stats/embed", nil)
	resp, body := do(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["provider"] != "none" {
		t.Errorf("expected provider none, got %v", body["provider"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd":   "passwd",
		`C:\Users\a\bài.pdf`: "bài.pdf",
		"":                   "unnamed",
		"a..b.txt":           "a_b.txt",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
