package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key-123" {
			t.Errorf("missing api key header")
		}
		var req SearchRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "golang" {
			t.Errorf("query = %q", req.Query)
		}
		json.NewEncoder(w).Encode(SearchResponse{
			RequestID: "req-1",
			Context:   "aggregated context",
			Results:   []Result{{URL: "https://a.example", Title: "A", Text: "text a"}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "key-123"}, zerolog.Nop())
	resp, err := c.Search(context.Background(), SearchRequest{Query: "golang", Contents: SearchContents{Text: true}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Context != "aggregated context" || len(resp.Results) != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"message": "try later"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Message != "try later" {
		t.Errorf("unexpected StatusError: %+v", se)
	}
}

func TestContents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ContentsRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.IDs) != 1 || req.IDs[0] != "https://a.example/doc" {
			t.Errorf("ids = %v", req.IDs)
		}
		json.NewEncoder(w).Encode(ContentsResponse{
			Results: []Result{{URL: "https://a.example/doc", Text: "doc text"}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	resp, err := c.Contents(context.Background(), ContentsRequest{
		IDs:      []string{"https://a.example/doc"},
		Contents: DocumentContents{Text: &TextSpec{MaxCharacters: 3000}, Livecrawl: "preferred"},
	})
	if err != nil {
		t.Fatalf("contents: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Text != "doc text" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
