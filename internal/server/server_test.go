package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/darthVad3r/StacksOfChaos-sub000/internal/app"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/ratelimit"
	"github.com/darthVad3r/StacksOfChaos-sub000/internal/titles"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/domain"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/mail"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/storage"
	"github.com/darthVad3r/StacksOfChaos-sub000/pkg/store"
)

type testServer struct {
	srv   *httptest.Server
	app   *app.App
	store *store.MemoryStore
	queue *mail.MemoryQueue
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	memStore := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret", store.NewMemoryTokenRevoker(), store.JWTOptions{TTL: time.Hour})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	queue := mail.NewMemoryQueue()
	a, err := app.New(app.Config{
		BaseURL:       "http://localhost:8080",
		Store:         memStore,
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
		ConfirmTokens: store.NewMemoryConfirmTokenStore(),
		EmailQueue:    queue,
		Covers:        storage.NewMemoryCoverStore(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{App: a}
	if mutate != nil {
		mutate(&cfg)
	}
	ts := httptest.NewServer(New(cfg).Router())
	t.Cleanup(ts.Close)
	return &testServer{srv: ts, app: a, store: memStore, queue: queue}
}

const strongPassword = "Str0ng#Pass"

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// register registers a user and returns its ID.
func (ts *testServer) register(t *testing.T, email string) string {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/account/register", "", map[string]string{
		"email":     email,
		"password":  strongPassword,
		"firstName": "Ada",
		"lastName":  "Lovelace",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register %s: status %d", email, resp.StatusCode)
	}
	var user domain.User
	decodeInto(t, resp, &user)
	return user.ID
}

// login returns the access and refresh tokens.
func (ts *testServer) login(t *testing.T, email string) (string, string) {
	t.Helper()
	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": strongPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", email, resp.StatusCode)
	}
	var tokens struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeInto(t, resp, &tokens)
	return tokens.Token, tokens.RefreshToken
}

func TestRegisterLoginAndRefresh(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.register(t, "ada@example.com")

	resp := ts.do(t, http.MethodPost, "/api/account/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": strongPassword,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: status %d, want 409", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", resp.StatusCode)
	}
	var body map[string]string
	decodeInto(t, resp, &body)
	if body["error"] != "Incorrect email address or password" {
		t.Fatalf("bad login message: %q", body["error"])
	}

	_, refresh := ts.login(t, "ada@example.com")

	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}

	// The exchanged token is dead.
	resp = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: status %d, want 401", resp.StatusCode)
	}
}

func TestConfirmEmailEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "ada@example.com")

	events := ts.queue.Events()
	if len(events) != 1 {
		t.Fatalf("queued %d emails, want 1", len(events))
	}
	confirmURL, err := url.Parse(events[0].Data["ConfirmURL"])
	if err != nil {
		t.Fatalf("parse confirm URL: %v", err)
	}
	path := confirmURL.Path + "?" + confirmURL.RawQuery

	resp := ts.do(t, http.MethodGet, "/api/account/confirm-email", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("confirm without params: status %d, want 400", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, path, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status %d", resp.StatusCode)
	}

	// Single use.
	resp = ts.do(t, http.MethodGet, path, "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("replayed confirm: status %d, want 400", resp.StatusCode)
	}
}

func TestBooksEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")
	token, _ := ts.login(t, "ada@example.com")

	resp := ts.do(t, http.MethodGet, "/api/books", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list: status %d, want 401", resp.StatusCode)
	}

	// Creation accepts anonymous callers naming an owner.
	resp = ts.do(t, http.MethodPost, "/api/books", "", map[string]any{
		"ownerId": userID,
		"title":   "Dune",
		"author":  "Frank Herbert",
		"isbn":    "978-0-441-01359-3",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create book: status %d", resp.StatusCode)
	}
	var book domain.Book
	decodeInto(t, resp, &book)
	if book.ID == "" || book.OwnerID != userID {
		t.Fatalf("unexpected book: %+v", book)
	}

	resp = ts.do(t, http.MethodGet, "/api/books/"+book.ID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get book: status %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/books/nope", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown book: status %d, want 404", resp.StatusCode)
	}

	// Path and body IDs must agree on update.
	resp = ts.do(t, http.MethodPut, "/api/books/"+book.ID, "", map[string]any{
		"id":     "different",
		"title":  "Dune",
		"author": "Frank Herbert",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("mismatched update: status %d, want 404", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPut, "/api/books/"+book.ID, "", map[string]any{
		"id":     book.ID,
		"title":  "Dune Messiah",
		"author": "Frank Herbert",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d", resp.StatusCode)
	}
	decodeInto(t, resp, &book)
	if book.Title != "Dune Messiah" {
		t.Fatalf("title = %q", book.Title)
	}

	resp = ts.do(t, http.MethodGet, "/api/books", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var books []domain.Book
	decodeInto(t, resp, &books)
	if len(books) != 1 {
		t.Fatalf("listed %d books, want 1", len(books))
	}

	resp = ts.do(t, http.MethodDelete, "/api/books/"+book.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}
	resp = ts.do(t, http.MethodDelete, "/api/books/"+book.ID, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d, want 404", resp.StatusCode)
	}
}

func TestBookValidationErrorsSurface(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")

	resp := ts.do(t, http.MethodPost, "/api/books", "", map[string]any{
		"ownerId": userID,
		"title":   "",
		"author":  "Frank Herbert",
		"isbn":    "12345",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid book: status %d, want 400", resp.StatusCode)
	}
	var body struct {
		Errors []string `json:"errors"`
	}
	decodeInto(t, resp, &body)
	if len(body.Errors) != 2 {
		t.Fatalf("violations = %v, want 2", body.Errors)
	}
}

func TestShelfPlacementOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")
	token, _ := ts.login(t, "ada@example.com")

	var lib domain.Library
	resp := ts.do(t, http.MethodPost, "/api/libraries", token, map[string]string{"name": "Home"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create library: status %d", resp.StatusCode)
	}
	decodeInto(t, resp, &lib)

	var loc domain.Location
	resp = ts.do(t, http.MethodPost, "/api/libraries/"+lib.ID+"/locations", token, map[string]string{"name": "Study"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create location: status %d", resp.StatusCode)
	}
	decodeInto(t, resp, &loc)

	var shelf domain.Shelf
	resp = ts.do(t, http.MethodPost, "/api/libraries/"+lib.ID+"/locations/"+loc.ID+"/shelves", token, map[string]any{
		"name":     "Top",
		"capacity": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create shelf: status %d", resp.StatusCode)
	}
	decodeInto(t, resp, &shelf)

	makeBook := func(title string) domain.Book {
		resp := ts.do(t, http.MethodPost, "/api/books", token, map[string]any{
			"ownerId": userID,
			"title":   title,
			"author":  "Frank Herbert",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: status %d", title, resp.StatusCode)
		}
		var b domain.Book
		decodeInto(t, resp, &b)
		return b
	}
	first := makeBook("Dune")
	second := makeBook("Dune Messiah")

	resp = ts.do(t, http.MethodPut, "/api/books/"+first.ID+"/shelf", token, map[string]string{"shelfId": shelf.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("place first: status %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPut, "/api/books/"+second.ID+"/shelf", token, map[string]string{"shelfId": shelf.ID})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("place on full shelf: status %d, want 422", resp.StatusCode)
	}
}

func TestLibrariesRequireAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "ada@example.com")
	token, _ := ts.login(t, "ada@example.com")

	resp := ts.do(t, http.MethodGet, "/api/libraries", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous list: status %d, want 401", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/libraries", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var libs []domain.Library
	decodeInto(t, resp, &libs)
	if libs == nil || len(libs) != 0 {
		t.Fatalf("libraries = %v, want empty array", libs)
	}
}

func TestUsersEndpointIsAdminOnly(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")
	token, _ := ts.login(t, "ada@example.com")

	resp := ts.do(t, http.MethodGet, "/api/users", token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin list: status %d, want 403", resp.StatusCode)
	}

	user, found, err := ts.store.GetUserByID(userID)
	if err != nil || !found {
		t.Fatalf("fetch user: %v found=%v", err, found)
	}
	user.Role = domain.RoleAdmin
	if err := ts.store.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}

	resp = ts.do(t, http.MethodGet, "/api/users", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: status %d", resp.StatusCode)
	}
	var users []domain.User
	decodeInto(t, resp, &users)
	if len(users) != 1 {
		t.Fatalf("listed %d users, want 1", len(users))
	}
}

func TestUserAccessControl(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.register(t, "ada@example.com")
	otherID := ts.register(t, "grace@example.com")
	token, _ := ts.login(t, "ada@example.com")

	resp := ts.do(t, http.MethodGet, "/api/users/"+otherID, token, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign profile: status %d, want 403", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodPost, "/api/users/"+otherID+"/password", token, map[string]string{
		"currentPassword": strongPassword,
		"newPassword":     "An0ther#Pass",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign password change: status %d, want 403", resp.StatusCode)
	}
}

func TestTitleSearchEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "nothing" {
			fmt.Fprint(w, `{"numFound":0,"docs":[]}`)
			return
		}
		fmt.Fprint(w, `{"numFound":1,"docs":[{"title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965}]}`)
	}))
	defer upstream.Close()

	ts := newTestServer(t, func(cfg *Config) {
		cfg.Titles = titles.NewClient(upstream.URL)
	})

	resp := ts.do(t, http.MethodGet, "/api/title", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing searchString: status %d, want 400", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/title?searchString=nothing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty results: status %d, want 404", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/api/title?searchString=dune", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status %d", resp.StatusCode)
	}
	var results []titles.Result
	decodeInto(t, resp, &results)
	if len(results) != 1 || results[0].Title != "Dune" {
		t.Fatalf("results = %+v", results)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := ratelimit.New(mr.Addr(), "", "test:rl", 2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	ts := newTestServer(t, func(cfg *Config) {
		cfg.LoginLimiter = limiter
	})
	ts.register(t, "ada@example.com")

	body := map[string]string{"email": "ada@example.com", "password": strongPassword}
	for i := 0; i < 2; i++ {
		resp := ts.do(t, http.MethodPost, "/api/auth/login", "", body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("login %d: status %d", i, resp.StatusCode)
		}
	}
	resp := ts.do(t, http.MethodPost, "/api/auth/login", "", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited login: status %d, want 429", resp.StatusCode)
	}
}

func TestCoverUploadRejectsNonImages(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")

	resp := ts.do(t, http.MethodPost, "/api/books", "", map[string]any{
		"ownerId": userID,
		"title":   "Dune",
		"author":  "Frank Herbert",
	})
	var book domain.Book
	decodeInto(t, resp, &book)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/books/"+book.ID+"/cover",
		strings.NewReader("not an image"))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	upResp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer upResp.Body.Close()
	if upResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("non-image upload: status %d, want 400", upResp.StatusCode)
	}
}

func TestCoverUploadStoresURL(t *testing.T) {
	ts := newTestServer(t, nil)
	userID := ts.register(t, "ada@example.com")

	resp := ts.do(t, http.MethodPost, "/api/books", "", map[string]any{
		"ownerId": userID,
		"title":   "Dune",
		"author":  "Frank Herbert",
	})
	var book domain.Book
	decodeInto(t, resp, &book)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/books/"+book.ID+"/cover",
		bytes.NewReader([]byte{0xFF, 0xD8, 0xFF}))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	upResp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer upResp.Body.Close()
	if upResp.StatusCode != http.StatusOK {
		t.Fatalf("upload: status %d", upResp.StatusCode)
	}
	var updated domain.Book
	if err := json.NewDecoder(upResp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(updated.CoverURL, book.ID) {
		t.Fatalf("coverUrl = %q", updated.CoverURL)
	}
}
