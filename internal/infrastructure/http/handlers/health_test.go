package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/job-tracker/internal/core/ports"
)

type stubSubs struct {
	ready map[string]bool
}

func (s *stubSubs) Ensure(context.Context, string, ports.Scope) error { return nil }

func (s *stubSubs) IsReady(name string) bool { return s.ready[name] }

func (s *stubSubs) Update(context.Context, string, ports.Scope) error { return nil }

func TestHealthHandler_Liveness(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHealthHandler().Liveness(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadinessHandler_NotReadyUntilAllSubscriptions(t *testing.T) {
	e := echo.New()
	subs := &stubSubs{ready: map[string]bool{
		ports.SubJobs:      true,
		ports.SubLocations: true,
		// users still syncing
	}}
	handler := NewReadinessHandler(subs)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	if err := handler.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while a subscription is syncing, got %d", rec.Code)
	}

	subs.ready[ports.SubUsers] = true
	rec = httptest.NewRecorder()
	if err := handler.Readiness(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 once all subscriptions are ready, got %d", rec.Code)
	}

	var status map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, name := range []string{ports.SubJobs, ports.SubLocations, ports.SubUsers} {
		if !status[name] {
			t.Fatalf("expected %s ready in response, got %+v", name, status)
		}
	}
}
