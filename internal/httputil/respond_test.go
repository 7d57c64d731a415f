package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intelligence-service/platform/internal/errors"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "abc" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.NotFound("report not found"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" || body.Error.Message != "report not found" {
		t.Errorf("error envelope = %+v", body.Error)
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, sqlDriverError{})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection string") {
		t.Error("internal error detail leaked to the client")
	}
}

type sqlDriverError struct{}

func (sqlDriverError) Error() string { return "pq: bad connection string" }

func TestDecodeJSONBody(t *testing.T) {
	var target struct {
		Title string `json:"title"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok"}`))
	if err := DecodeJSONBody(req, &target); err != nil {
		t.Fatalf("DecodeJSONBody() error: %v", err)
	}
	if target.Title != "ok" {
		t.Errorf("title = %q", target.Title)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"ok","bogus":1}`))
	err := DecodeJSONBody(req, &target)
	if err == nil {
		t.Fatal("unknown field accepted")
	}
	if errors.HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", errors.HTTPStatus(err))
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	if err := DecodeJSONBody(req, &target); err == nil {
		t.Fatal("malformed JSON accepted")
	}
}
