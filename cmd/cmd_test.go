package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"google.golang.org/grpc"
)

func TestEnsureRequestIDGeneratesWhenMissing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	var seen string
	handler := ensureRequestID()(func(c echo.Context) error {
		seen = c.Request().Header.Get(echo.HeaderXRequestID)
		return c.NoContent(http.StatusOK)
	})
	if err := handler(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seen == "" {
		t.Fatal("expected generated request id")
	}
	if rec.Header().Get(echo.HeaderXRequestID) != seen {
		t.Fatalf("expected response header %q, got %q", seen, rec.Header().Get(echo.HeaderXRequestID))
	}
}

func TestRequireRequestIDRejectsGenerated(t *testing.T) {
	e := echo.New()
	chain := ensureRequestID()(requireRequestID()(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	if err := chain(e.NewContext(httptest.NewRequest(http.MethodGet, "/admin/donations", nil), rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/donations", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec = httptest.NewRecorder()
	if err := chain(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) != "req-1" {
		t.Fatalf("expected echoed request id, got %q", rec.Header().Get(echo.HeaderXRequestID))
	}
}

func TestSkipForMethods(t *testing.T) {
	deny := func(context.Context, interface{}, *grpc.UnaryServerInfo, grpc.UnaryHandler) (interface{}, error) {
		return nil, errors.New("denied")
	}
	interceptor := skipForMethods(deny, "/grpc.health.v1.Health/Check")
	handler := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("expected health check to bypass, got %v %v", resp, err)
	}
	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/donations.DonationsService/GetDonation"}, handler); err == nil {
		t.Fatal("expected interceptor to run for other methods")
	}
}

type countingRecorder struct {
	runs map[string]int
}

func (r *countingRecorder) JobRun(job, result string) {
	r.runs[job+":"+result]++
}

func TestRunJobRecordsResult(t *testing.T) {
	recorder := &countingRecorder{runs: map[string]int{}}

	runJob("reconcile", recorder, func() error { return nil })
	runJob("reconcile", recorder, func() error { return errors.New("gateway down") })

	if recorder.runs["reconcile:completed"] != 1 || recorder.runs["reconcile:failed"] != 1 {
		t.Fatalf("unexpected job runs %+v", recorder.runs)
	}
}
