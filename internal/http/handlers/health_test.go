package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthCheck(t *testing.T) {
	ok := NewHealthHandler(pingerFunc(func(context.Context) error { return nil }))
	if rec := serve(t, route{http.MethodGet, "/healthcheck", ok.HealthCheck}, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthy: want=200 got=%d", rec.Code)
	}
	down := NewHealthHandler(pingerFunc(func(context.Context) error { return errors.New("down") }))
	if rec := serve(t, route{http.MethodGet, "/healthcheck", down.HealthCheck}, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("db down: want=503 got=%d", rec.Code)
	}
	if rec := serve(t, route{http.MethodGet, "/healthcheck", NewHealthHandler(nil).HealthCheck}, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK {
		t.Fatalf("no db: want=200 got=%d", rec.Code)
	}
}
