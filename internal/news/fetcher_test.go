package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNoopFetcher(t *testing.T) {
	articles, err := NoopFetcher{}.Fetch(context.Background(), "technology", "ai")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected no articles, got %d", len(articles))
	}
}

func TestHTTPFetcher(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/news" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "technology" {
			t.Errorf("unexpected category: %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "robotics" {
			t.Errorf("unexpected query: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"articles":[{"source":"Campus Times","title":"Robotics lab opens","link":"http://x","description":"New lab","pub_date":"2025-03-01T10:00:00Z"}]}`))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(Config{Endpoint: ts.URL, Timeout: 5 * time.Second})
	if !f.Available() {
		t.Fatal("expected fetcher to be available")
	}
	articles, err := f.Fetch(context.Background(), "technology", "robotics")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Title != "Robotics lab opens" || articles[0].Source != "Campus Times" {
		t.Errorf("unexpected article: %+v", articles[0])
	}
}

func TestHTTPFetcherEmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"articles":[]}`))
	}))
	defer ts.Close()

	f := NewHTTPFetcher(Config{Endpoint: ts.URL})
	articles, err := f.Fetch(context.Background(), "general", "")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected no articles, got %d", len(articles))
	}
}

func TestHTTPFetcherUnconfigured(t *testing.T) {
	f := NewHTTPFetcher(Config{})
	articles, err := f.Fetch(context.Background(), "general", "")
	if err != nil || articles != nil {
		t.Fatalf("expected nil/nil, got %v/%v", articles, err)
	}
}

func TestHTTPFetcherErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	f := NewHTTPFetcher(Config{Endpoint: ts.URL})
	if _, err := f.Fetch(context.Background(), "general", ""); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
