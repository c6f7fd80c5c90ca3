package library

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

const testToken = "tok-123"

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
	Auth   string
}

// Call renders the request as "METHOD /path?query".
func (r recordedRequest) Call() string {
	if r.Query == "" {
		return r.Method + " " + r.Path
	}
	return r.Method + " " + r.Path + "?" + r.Query
}

// fakeAPI is an in-process stand-in for the library service. Routes answer
// with canned data; fail overrides a route's status by its route key.
type fakeAPI struct {
	srv *httptest.Server

	mu         sync.Mutex
	requests   []recordedRequest
	fail       map[string]int
	validToken string
	bookPages  map[string]string
	onRequest  func(key string)
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		fail:       map[string]int{},
		validToken: testToken,
		bookPages:  map[string]string{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/login/", api.handle("POST /login/", false, api.login)).Methods(http.MethodPost)
	r.HandleFunc("/register/", api.handle("POST /register/", false, status(http.StatusCreated))).Methods(http.MethodPost)
	r.HandleFunc("/books/", api.handle("GET /books/", true, api.listBooks)).Methods(http.MethodGet)
	r.HandleFunc("/books/", api.handle("POST /books/", true, status(http.StatusCreated))).Methods(http.MethodPost)
	r.HandleFunc("/books/{id:[0-9]+}/", api.handle("PUT /books/{id}/", true, status(http.StatusOK))).Methods(http.MethodPut)
	r.HandleFunc("/books/{id:[0-9]+}/", api.handle("DELETE /books/{id}/", true, status(http.StatusNoContent))).Methods(http.MethodDelete)
	r.HandleFunc("/books/{id:[0-9]+}/borrow/", api.handle("POST /books/{id}/borrow/", true, status(http.StatusCreated))).Methods(http.MethodPost)
	r.HandleFunc("/borrowed-books/", api.handle("GET /borrowed-books/", true, jsonBody(`[{"id":1,"book":{"id":1,"title":"Dune","author":"Frank Herbert"}}]`))).Methods(http.MethodGet)
	r.HandleFunc("/most-borrowed/", api.handle("GET /most-borrowed/", true, jsonBody(`[{"id":1,"title":"Dune","author":"Frank Herbert","total_borrows":4},{"id":2,"title":"Emma","author":"Jane Austen"}]`))).Methods(http.MethodGet)

	api.srv = httptest.NewServer(r)
	t.Cleanup(api.srv.Close)
	return api
}

func (api *fakeAPI) URL() string { return api.srv.URL }

func (api *fakeAPI) handle(key string, auth bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   string(body),
			Auth:   r.Header.Get("Authorization"),
		})
		code, failing := api.fail[key]
		valid := api.validToken
		hook := api.onRequest
		api.mu.Unlock()

		if hook != nil {
			hook(key)
		}

		if auth && r.Header.Get("Authorization") != "Token "+valid {
			http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
			return
		}
		if failing {
			http.Error(w, `{"detail":"rejected"}`, code)
			return
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next(w, r)
	}
}

func (api *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username != "alice" || creds.Password != "secret" {
		http.Error(w, `{"non_field_errors":["Unable to log in"]}`, http.StatusBadRequest)
		return
	}
	jsonBody(fmt.Sprintf(`{"token":%q}`, testToken))(w, r)
}

// listBooks serves bookPages keyed by the "page" query value ("" for the
// first page). The placeholder {base} expands to the server URL.
func (api *fakeAPI) listBooks(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	body, ok := api.bookPages[r.URL.Query().Get("page")]
	api.mu.Unlock()
	if !ok {
		body = `{"results":[],"next":null,"previous":null}`
	}
	jsonBody(strings.ReplaceAll(body, "{base}", "http://"+r.Host))(w, r)
}

func (api *fakeAPI) setPage(page, body string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.bookPages[page] = body
}

func (api *fakeAPI) failRoute(key string, code int) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.fail[key] = code
}

// observe runs fn with the route key of every request before it is answered.
func (api *fakeAPI) observe(fn func(key string)) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.onRequest = fn
}

func (api *fakeAPI) rotateToken(token string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.validToken = token
}

func (api *fakeAPI) Requests() []recordedRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]recordedRequest(nil), api.requests...)
}

// Calls lists every request as "METHOD /path?query".
func (api *fakeAPI) Calls() []string {
	reqs := api.Requests()
	calls := make([]string, len(reqs))
	for i, r := range reqs {
		calls[i] = r.Call()
	}
	return calls
}

func (api *fakeAPI) Reset() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.requests = nil
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

// fakeUI records alerts and answers confirmations with confirm.
type fakeUI struct {
	confirm  bool
	alerts   []string
	prompted []string
}

func (u *fakeUI) Alert(msg string) { u.alerts = append(u.alerts, msg) }

func (u *fakeUI) Confirm(prompt string) bool {
	u.prompted = append(u.prompted, prompt)
	return u.confirm
}

func (u *fakeUI) lastAlert() string {
	if len(u.alerts) == 0 {
		return ""
	}
	return u.alerts[len(u.alerts)-1]
}

// countingStore counts removals so tests can tell how often a logout ran.
type countingStore struct {
	TokenStore
	removes int
}

func (s *countingStore) Remove(key string) error {
	s.removes++
	return s.TokenStore.Remove(key)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type harness struct {
	api   *fakeAPI
	ui    *fakeUI
	store *countingStore
	mgr   *LibraryManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := newFakeAPI(t)
	ui := &fakeUI{}
	store := &countingStore{TokenStore: tempDB(t)}
	client := NewClient(api.URL(), 5*time.Second, 0, discardLogger())
	return &harness{
		api:   api,
		ui:    ui,
		store: store,
		mgr:   NewLibraryManager(client, store, ui, discardLogger()),
	}
}
