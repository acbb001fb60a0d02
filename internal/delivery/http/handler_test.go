package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeffreymoya/photoeditor-sub011/internal/batch"
	"github.com/jeffreymoya/photoeditor-sub011/internal/blob"
	"github.com/jeffreymoya/photoeditor-sub011/internal/domain"
	mockqueue "github.com/jeffreymoya/photoeditor-sub011/internal/queue/mock"
	mockrepo "github.com/jeffreymoya/photoeditor-sub011/internal/repository/mock"
	"github.com/jeffreymoya/photoeditor-sub011/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *mockrepo.JobRepository, *mockqueue.Enqueuer) {
	t.Helper()
	repo := mockrepo.NewJobRepository()
	enq := mockqueue.NewEnqueuer()
	blobs := blob.NewLocalFS(t.TempDir(), "http://localhost:8080", 15*time.Minute)
	logger := zap.NewNop()
	agg := batch.NewAggregator(repo, logger)

	router := NewRouter(RouterDeps{
		SubmitJob:       usecase.NewSubmitJobUsecase(repo, blobs, enq, logger),
		SubmitBatch:     usecase.NewSubmitBatchUsecase(repo, agg, blobs, enq, logger),
		GetJob:          usecase.NewGetJobUsecase(repo, logger),
		GetBatch:        usecase.NewGetBatchUsecase(repo, logger),
		Transfer:        blobs,
		Logger:          logger,
		RateLimitPerMin: 1000,
		MaxBodyBytes:    1 << 20,
	})
	return router, repo, enq
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitJob_Success(t *testing.T) {
	router, repo, enq := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/jobs", map[string]any{
		"file_meta": map[string]any{"file_name": "cat.png", "content_type": "image/png", "size_bytes": 2048},
		"prompt":    "remove the background",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.JobID == uuid.Nil {
		t.Error("expected non-empty job ID")
	}
	if resp.Status != string(domain.StatusQueued) {
		t.Errorf("status %s, want QUEUED", resp.Status)
	}
	if !strings.Contains(resp.UploadHandle, "/api/v1/uploads/") {
		t.Errorf("unexpected upload handle: %s", resp.UploadHandle)
	}

	if len(enq.Enqueued) != 1 || enq.Enqueued[0] != resp.JobID {
		t.Errorf("expected job %s enqueued once, got %v", resp.JobID, enq.Enqueued)
	}

	stored, err := repo.FindJob(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if stored.Status != domain.StatusQueued {
		t.Errorf("persisted status %s, want QUEUED", stored.Status)
	}
}

func TestSubmitJob_MissingPrompt(t *testing.T) {
	router, _, enq := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/jobs", map[string]any{
		"file_meta": map[string]any{"file_name": "cat.png"},
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if len(enq.Enqueued) != 0 {
		t.Error("invalid request must not enqueue")
	}
}

func TestSubmitJob_EnqueueFailureMarksJobFailed(t *testing.T) {
	router, repo, enq := setupTestRouter(t)
	enq.EnqueueFn = func(ctx context.Context, jobID uuid.UUID) error {
		return domain.ErrPublishFailed
	}

	w := postJSON(t, router, "/api/v1/jobs", map[string]any{
		"file_meta": map[string]any{"file_name": "cat.png"},
		"prompt":    "sharpen",
	})

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}

	// The orphaned job must be failed, not left QUEUED forever.
	if len(repo.StatusUpdates) != 1 || repo.StatusUpdates[0].Status != domain.StatusFailed {
		t.Errorf("expected one FAILED write, got %+v", repo.StatusUpdates)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGetJob_InvalidID(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestSubmitBatch_Success(t *testing.T) {
	router, repo, enq := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files": []map[string]any{
			{"file_name": "a.png"},
			{"file_name": "b.png"},
			{"file_name": "c.png"},
		},
		"shared_prompt": "same style everywhere",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.ChildJobIDs) != 3 || len(resp.UploadHandles) != 3 {
		t.Fatalf("expected 3 children and handles, got %d/%d", len(resp.ChildJobIDs), len(resp.UploadHandles))
	}
	if len(enq.Enqueued) != 3 {
		t.Errorf("expected 3 enqueues, got %d", len(enq.Enqueued))
	}

	b, err := repo.FindBatch(context.Background(), resp.BatchJobID)
	if err != nil {
		t.Fatalf("batch not persisted: %v", err)
	}
	if b.TotalCount != 3 || b.CompletedCount != 0 || b.Status != domain.BatchQueued {
		t.Errorf("unexpected batch: %+v", b)
	}
}

func TestSubmitBatch_Empty(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := postJSON(t, router, "/api/v1/batches", map[string]any{
		"files":         []map[string]any{},
		"shared_prompt": "noop",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty batch, got %d", w.Code)
	}
}

func TestGetBatch_NotFound(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestUploadThroughHandle(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	// Submit to get a handle.
	w := postJSON(t, router, "/api/v1/jobs", map[string]any{
		"file_meta": map[string]any{"file_name": "cat.png"},
		"prompt":    "sharpen",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit failed: %d", w.Code)
	}
	var resp domain.SubmitJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	// The handle is absolute; the router serves its path.
	path := strings.TrimPrefix(resp.UploadHandle, "http://localhost:8080")
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader([]byte("png bytes")))
	put := httptest.NewRecorder()
	router.ServeHTTP(put, req)

	if put.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d: %s", put.Code, put.Body.String())
	}

	// The same token must not work twice as a download token.
	req = httptest.NewRequest(http.MethodGet, strings.Replace(path, "/uploads/", "/downloads/", 1), nil)
	get := httptest.NewRecorder()
	router.ServeHTTP(get, req)
	if get.Code != http.StatusGone {
		t.Errorf("expected status 410 for wrong-kind token, got %d", get.Code)
	}
}

func TestUploadUnknownToken(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/uploads/"+uuid.NewString(), bytes.NewReader([]byte("x")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusGone {
		t.Errorf("expected status 410, got %d", w.Code)
	}
}

func TestListFormats(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/formats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp struct {
		Formats []domain.FormatInfo `json:"formats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Formats) == 0 {
		t.Error("expected at least one supported format")
	}
}

func TestHealth(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestHealth_FailingDependencyDegrades(t *testing.T) {
	h := NewHealthHandler(zap.NewNop(), map[string]Checker{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	})
	router := gin.New()
	router.GET("/health", h.Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	var resp struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status %q, want degraded", resp.Status)
	}
	if resp.Services["redis"] != "unavailable" || resp.Services["postgres"] != "ok" {
		t.Errorf("unexpected services: %v", resp.Services)
	}
}
