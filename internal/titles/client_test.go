package titles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchParsesDocs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search.json" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "dune" {
			t.Fatalf("q = %q, want dune", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"docs":[
			{"title":"Dune","author_name":["Frank Herbert"],"isbn":["9780441013593","0441013597"],
			 "first_publish_year":1965,"publisher":["Chilton Books"],"language":["eng"],
			 "cover_i":11481354,"description":"<p>A <b>classic</b> of science fiction.</p>"},
			{"title":""},
			{"title":"Dune Messiah","author_name":["Frank Herbert"]}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "dune")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (untitled docs skipped)", len(results))
	}

	first := results[0]
	if first.Title != "Dune" || first.FirstPublished != 1965 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Publisher != "Chilton Books" || first.Language != "eng" {
		t.Fatalf("publisher/language wrong: %+v", first)
	}
	if first.CoverURL != "https://covers.openlibrary.org/b/id/11481354-M.jpg" {
		t.Fatalf("cover url = %q", first.CoverURL)
	}
	if first.Description != "A classic of science fiction." {
		t.Fatalf("description = %q", first.Description)
	}
	if len(first.ISBNs) != 2 {
		t.Fatalf("isbns = %v", first.ISBNs)
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Search(context.Background(), "dune"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"docs":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "zzzz")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"  spaced   out ", "spaced out"},
		{"<p>Hello <em>world</em></p>", "Hello world"},
		{"<div><span>a</span><span>b</span></div>", "a b"},
	}
	for _, tc := range tests {
		if got := StripHTML(tc.in); got != tc.want {
			t.Fatalf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
