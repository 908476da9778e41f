package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/supportmind/memory-core/internal/models"
	"github.com/supportmind/memory-core/internal/queue"
)

// stubJobQueue records enqueued jobs for archival handler tests.
type stubJobQueue struct {
	jobs []*queue.Job
	err  error
}

func (s *stubJobQueue) Enqueue(ctx context.Context, job *queue.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubJobQueue) Dequeue(ctx context.Context) (*queue.Message, error) { return nil, nil }

func (s *stubJobQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (s *stubJobQueue) Close() error { return nil }

func (s *stubJobQueue) HealthCheck(ctx context.Context) error { return nil }

var _ queue.JobQueue = (*stubJobQueue)(nil)

func newArchivalRouter(h *ArchivalHandler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/api/v1/archival").Subrouter())
	return r
}

func TestArchivalHandler_RunArchival(t *testing.T) {
	t.Parallel()

	tenant := &models.Tenant{ID: uuid.New()}

	t.Run("tenant-wide run", func(t *testing.T) {
		t.Parallel()

		q := &stubJobQueue{}
		h := NewArchivalHandler(queue.NewScheduler(q))

		w := httptest.NewRecorder()
		newArchivalRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/archival/run", nil))

		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
		if len(q.jobs) != 1 {
			t.Fatalf("jobs = %d, want 1", len(q.jobs))
		}
		job := q.jobs[0]
		if job.Type != queue.JobTypeArchiveTenant {
			t.Errorf("Type = %s, want archive_tenant", job.Type)
		}
		if job.TenantID != tenant.ID {
			t.Errorf("TenantID = %s, want %s", job.TenantID, tenant.ID)
		}
		if job.CustomerID != nil {
			t.Errorf("CustomerID = %v, want nil", job.CustomerID)
		}

		var envelope struct {
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if envelope.Data["job_id"] == "" {
			t.Error("job_id missing from response")
		}
	})

	t.Run("customer-scoped run", func(t *testing.T) {
		t.Parallel()

		q := &stubJobQueue{}
		h := NewArchivalHandler(queue.NewScheduler(q))
		customerID := uuid.New()

		body := map[string]any{"customer_id": customerID}
		w := httptest.NewRecorder()
		newArchivalRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/archival/run", body))

		if w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
		}
		if len(q.jobs) != 1 || q.jobs[0].CustomerID == nil || *q.jobs[0].CustomerID != customerID {
			t.Fatalf("jobs = %+v, want one scoped to %s", q.jobs, customerID)
		}
	})

	t.Run("broker failure", func(t *testing.T) {
		t.Parallel()

		h := NewArchivalHandler(queue.NewScheduler(&stubJobQueue{err: errors.New("broker unavailable")}))

		w := httptest.NewRecorder()
		newArchivalRouter(h).ServeHTTP(w, authedRequest(t, tenant, "POST", "/api/v1/archival/run", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", w.Code)
		}
	})

	t.Run("requires tenant", func(t *testing.T) {
		t.Parallel()

		h := NewArchivalHandler(queue.NewScheduler(&stubJobQueue{}))

		w := httptest.NewRecorder()
		newArchivalRouter(h).ServeHTTP(w, authedRequest(t, nil, "POST", "/api/v1/archival/run", nil))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", w.Code)
		}
	})
}
