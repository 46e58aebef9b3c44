package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"urlfeed/internal/core/feed"
)

func TestHealth_HealthyWhenStorageReachable(t *testing.T) {
	app := testApp(&fakeEngine{}, &fakeStorage{stats: feed.Stats{PostCount: 5}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	app.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestHealth_DegradedWhenStorageErrors(t *testing.T) {
	app := testApp(&fakeEngine{}, &fakeStorage{err: errors.New("connection refused")})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	app.handleHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestStats_ReturnsStorageStats(t *testing.T) {
	app := testApp(&fakeEngine{}, &fakeStorage{stats: feed.Stats{PostCount: 42, URLCount: 7}})
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()

	app.handleStats(rec, req)

	var body feed.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PostCount != 42 || body.URLCount != 7 {
		t.Errorf("got %+v", body)
	}
}

func TestWellKnownDID(t *testing.T) {
	app := testApp(&fakeEngine{}, &fakeStorage{})
	req := httptest.NewRequest(http.MethodGet, "/.well-known/did.json", nil)
	rec := httptest.NewRecorder()

	app.handleWellKnownDID(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != "did:web:feed.example.com" {
		t.Errorf("id = %v", body["id"])
	}
}
