package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLingoClientLocalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/i18n" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}

		var req i18nRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Locale.Source != "en" || req.Locale.Target != "es-ES" {
			t.Errorf("unexpected locale: %+v", req.Locale)
		}
		if req.Data.Text != "hello" {
			t.Errorf("unexpected text: %q", req.Data.Text)
		}

		json.NewEncoder(w).Encode(i18nResponse{Data: i18nData{Text: "hola"}})
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "test-key", time.Second)
	got, err := c.Localize(context.Background(), "hello", "en", "es-ES")
	if err != nil {
		t.Fatalf("Localize: %v", err)
	}
	if got != "hola" {
		t.Fatalf("got %q, want %q", got, "hola")
	}
}

func TestLingoClientEmptySourceSendsAuto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req i18nRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Locale.Source != "auto" {
			t.Errorf("source = %q, want auto", req.Locale.Source)
		}
		json.NewEncoder(w).Encode(i18nResponse{Data: i18nData{Text: "hola"}})
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "k", time.Second)
	if _, err := c.Localize(context.Background(), "hello", "", "es-ES"); err != nil {
		t.Fatalf("Localize: %v", err)
	}
}

func TestLingoClientEmptyTranslationFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(i18nResponse{})
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "k", time.Second)
	got, err := c.Localize(context.Background(), "hello", "en", "es-ES")
	if err != nil {
		t.Fatalf("Localize: %v", err)
	}
	if got != "hello" {
		t.Fatalf("empty translation should fall back to original, got %q", got)
	}
}

func TestLingoClientServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "k", time.Second)
	_, err := c.Localize(context.Background(), "hello", "en", "es-ES")
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestLingoClientUnauthorizedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "bad-key", time.Second)
	_, err := c.Localize(context.Background(), "hello", "en", "es-ES")
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestLingoClientBadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewLingoClient(srv.URL, "k", time.Second)
	_, err := c.Localize(context.Background(), "hello", "en", "es-ES")
	if err == nil || IsTransient(err) || IsFatal(err) {
		t.Fatalf("expected plain error, got %v", err)
	}
}
