package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// TokenStore is durable storage for the session token.
type TokenStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// UI is what the controller needs from whatever renders it.
type UI interface {
	Alert(msg string)
	Confirm(prompt string) bool
}

// User-visible messages.
const (
	msgLoginFailed      = "Login failed. Check your credentials."
	msgRegistered       = "Registration successful! Please log in."
	msgRegisterFailed   = "Registration failed. Try again."
	msgBookCreated      = "Book created successfully!"
	msgBookUpdated      = "Book updated successfully!"
	msgSaveFailed       = "Failed to save book. Check your data and permissions."
	msgConfirmDelete    = "Are you sure you want to delete this book?"
	msgBookDeleted      = "Book deleted successfully!"
	msgDeleteFailed     = "Failed to delete book."
	msgBookBorrowed     = "Book borrowed successfully!"
	msgBorrowFailed     = "Failed to borrow book. Check availability."
	msgInvalidFormTitle = "Please fix the following fields:"
)

// LibraryManager owns the client state and turns user intents into API calls.
type LibraryManager struct {
	client *Client
	store  TokenStore
	ui     UI
	logger *slog.Logger

	state State
}

// NewLibraryManager wires the controller and installs its logout as the
// client's 401 interceptor.
func NewLibraryManager(client *Client, store TokenStore, ui UI, logger *slog.Logger) *LibraryManager {
	if logger == nil {
		logger = slog.Default()
	}
	lm := &LibraryManager{
		client: client,
		store:  store,
		ui:     ui,
		logger: logger,
		state:  State{LoginMode: true},
	}
	client.OnUnauthorized = lm.handleUnauthorized
	return lm
}

// State returns a snapshot of the current state.
func (lm *LibraryManager) State() State { return lm.state }

// ------------------ Session ------------------

// Restore picks up a persisted token. The token is trusted without a round
// trip; a stale one is rejected by the first load and the 401 interceptor
// logs the session out.
func (lm *LibraryManager) Restore(ctx context.Context) error {
	token, ok, err := lm.store.Get(TokenKey)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if !ok || token == "" {
		return nil
	}
	lm.state.Token = token
	lm.state.Authenticated = true
	lm.logger.Info("session restored")
	lm.loadAll(ctx)
	return nil
}

// Login exchanges credentials for a token, persists it and loads every view.
func (lm *LibraryManager) Login(ctx context.Context, username, password string) error {
	lm.state.Loading.Auth = true
	defer func() { lm.state.Loading.Auth = false }()

	token, err := lm.client.Login(ctx, username, password)
	if err != nil {
		lm.logger.Error("login failed", "username", username, "err", err)
		lm.ui.Alert(msgLoginFailed)
		return err
	}

	lm.state.Token = token
	lm.state.Authenticated = true
	lm.state.Username = username
	if err := lm.store.Set(TokenKey, token); err != nil {
		lm.logger.Error("persist token failed", "err", err)
	}
	lm.logger.Info("logged in", "username", username)
	lm.loadAll(ctx)
	return nil
}

// Register creates an account and switches back to the login form.
func (lm *LibraryManager) Register(ctx context.Context, username, password string) error {
	lm.state.Loading.Auth = true
	defer func() { lm.state.Loading.Auth = false }()

	if err := lm.client.Register(ctx, username, password); err != nil {
		lm.logger.Error("registration failed", "username", username, "err", err)
		lm.ui.Alert(msgRegisterFailed)
		return err
	}
	lm.ui.Alert(msgRegistered)
	lm.state.LoginMode = true
	return nil
}

// ToggleAuthMode switches the logged-out view between login and register.
func (lm *LibraryManager) ToggleAuthMode() { lm.state.LoginMode = !lm.state.LoginMode }

// Logout drops the session and every list mirrored from the server.
func (lm *LibraryManager) Logout() {
	lm.state.Authenticated = false
	lm.state.Token = ""
	lm.state.Username = ""
	if err := lm.store.Remove(TokenKey); err != nil {
		lm.logger.Error("remove token failed", "err", err)
	}
	lm.state.Books = nil
	lm.state.Borrowed = nil
	lm.state.MostBorrowed = nil
	lm.state.NextURL = ""
	lm.state.PrevURL = ""
}

// handleUnauthorized is the shared 401 path. A session that is already gone
// is not cleared twice.
func (lm *LibraryManager) handleUnauthorized() {
	if !lm.state.Authenticated && lm.state.Token == "" {
		return
	}
	lm.logger.Warn("session rejected by server, logging out")
	lm.Logout()
}

func (lm *LibraryManager) loadAll(ctx context.Context) {
	_ = lm.FetchBooks(ctx, lm.client.BooksURL(), "")
	_ = lm.FetchBorrowed(ctx)
	_ = lm.FetchMostBorrowed(ctx)
}

// ------------------ Catalog ------------------

// FetchBooks loads one catalog page. An empty pageURL is a no-op.
func (lm *LibraryManager) FetchBooks(ctx context.Context, pageURL, search string) error {
	if pageURL == "" {
		return nil
	}
	token, err := lm.token("fetch books")
	if err != nil {
		return err
	}

	lm.state.Loading.Books = true
	defer func() { lm.state.Loading.Books = false }()

	target, err := withSearch(pageURL, search)
	if err != nil {
		lm.logger.Error("fetch books failed", "url", pageURL, "err", err)
		return err
	}
	page, err := lm.client.ListBooks(ctx, target, token)
	if err != nil {
		lm.logger.Error("fetch books failed", "url", target, "err", err)
		return err
	}
	lm.state.Books = page.Results
	lm.state.NextURL = page.Next
	lm.state.PrevURL = page.Previous
	return nil
}

// withSearch attaches the search parameter to rawURL. Cursor URLs that
// already carry a query are left verbatim unless a search has to be added.
func withSearch(rawURL, search string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	q := u.Query()
	if q.Has("search") || (search == "" && u.RawQuery != "") {
		return rawURL, nil
	}
	param := url.Values{"search": {search}}.Encode()
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String(), nil
}

// SetSearch edits the held search text. It never queries.
func (lm *LibraryManager) SetSearch(q string) { lm.state.SearchQuery = strings.TrimSpace(q) }

// Search runs the held search text against the first catalog page.
func (lm *LibraryManager) Search(ctx context.Context) error {
	return lm.FetchBooks(ctx, lm.client.BooksURL(), lm.state.SearchQuery)
}

// NextPage follows the next cursor. Disabled (no-op) when there is none.
func (lm *LibraryManager) NextPage(ctx context.Context) error {
	return lm.FetchBooks(ctx, lm.state.NextURL, lm.state.SearchQuery)
}

// PrevPage follows the previous cursor. Disabled (no-op) when there is none.
func (lm *LibraryManager) PrevPage(ctx context.Context) error {
	return lm.FetchBooks(ctx, lm.state.PrevURL, lm.state.SearchQuery)
}

// BookByID finds a record on the loaded page.
func (lm *LibraryManager) BookByID(id int64) (Book, bool) {
	for _, b := range lm.state.Books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

// ------------------ Borrowing views ------------------

// FetchBorrowed reloads the user's borrow history. Failures are only logged;
// a 401 here does not end the session.
func (lm *LibraryManager) FetchBorrowed(ctx context.Context) error {
	token, err := lm.token("fetch borrowed books")
	if err != nil {
		return err
	}
	entries, err := lm.client.ListBorrowed(ctx, token)
	if err != nil {
		lm.logger.Error("fetch borrowed books failed", "err", err)
		return err
	}
	lm.state.Borrowed = entries
	return nil
}

// FetchMostBorrowed reloads the aggregate statistics. Failures are only
// logged; a 401 here does not end the session.
func (lm *LibraryManager) FetchMostBorrowed(ctx context.Context) error {
	token, err := lm.token("fetch most borrowed books")
	if err != nil {
		return err
	}
	entries, err := lm.client.MostBorrowed(ctx, token)
	if err != nil {
		lm.logger.Error("fetch most borrowed books failed", "err", err)
		return err
	}
	lm.state.MostBorrowed = entries
	return nil
}

// Refresh re-runs all three loaders.
func (lm *LibraryManager) Refresh(ctx context.Context) {
	_ = lm.FetchBooks(ctx, lm.client.BooksURL(), lm.state.SearchQuery)
	_ = lm.FetchBorrowed(ctx)
	_ = lm.FetchMostBorrowed(ctx)
}

// ------------------ Form ------------------

// Form returns the current form buffer.
func (lm *LibraryManager) Form() BookForm { return lm.state.Form }

// SetForm replaces the form buffer. The edit target is untouched.
func (lm *LibraryManager) SetForm(f BookForm) { lm.state.Form = f }

// StartEdit loads b into the form and makes it the edit target.
func (lm *LibraryManager) StartEdit(b Book) {
	lm.state.Form = FormFromBook(b)
	lm.state.EditingID = b.ID
}

// CancelEdit leaves update mode with an empty form.
func (lm *LibraryManager) CancelEdit() {
	lm.state.Form = BookForm{}
	lm.state.EditingID = 0
}

// ------------------ Mutations ------------------

// SubmitBook creates or updates depending on the edit target. On failure the
// form and edit target are kept for a retry.
func (lm *LibraryManager) SubmitBook(ctx context.Context) error {
	if errs := ValidateForm(lm.state.Form); len(errs) > 0 {
		lm.ui.Alert(formatFieldErrors(errs))
		return ErrInvalidForm
	}
	token, err := lm.token("save book")
	if err != nil {
		return err
	}

	editing := lm.state.EditingID
	err = lm.action(func() error {
		if editing != 0 {
			return lm.client.UpdateBook(ctx, token, editing, lm.state.Form)
		}
		return lm.client.CreateBook(ctx, token, lm.state.Form)
	})
	if err != nil {
		lm.logger.Error("save book failed", "book_id", editing, "err", err)
		lm.ui.Alert(msgSaveFailed)
		return err
	}

	if editing != 0 {
		lm.ui.Alert(msgBookUpdated)
	} else {
		lm.ui.Alert(msgBookCreated)
	}
	lm.state.Form = BookForm{}
	lm.state.EditingID = 0
	_ = lm.FetchBooks(ctx, lm.client.BooksURL(), lm.state.SearchQuery)
	return nil
}

// DeleteBook removes book id after the user confirms. Declining sends nothing.
func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	if !lm.ui.Confirm(msgConfirmDelete) {
		return nil
	}
	token, err := lm.token("delete book")
	if err != nil {
		return err
	}

	if err := lm.action(func() error { return lm.client.DeleteBook(ctx, token, id) }); err != nil {
		lm.logger.Error("delete book failed", "book_id", id, "err", err)
		lm.ui.Alert(msgDeleteFailed)
		return err
	}
	lm.ui.Alert(msgBookDeleted)
	_ = lm.FetchBooks(ctx, lm.client.BooksURL(), lm.state.SearchQuery)
	return nil
}

// Borrow borrows book id. Success refreshes the catalog and both borrowing
// views; failure refreshes nothing.
func (lm *LibraryManager) Borrow(ctx context.Context, id int64) error {
	token, err := lm.token("borrow book")
	if err != nil {
		return err
	}

	if err := lm.action(func() error { return lm.client.BorrowBook(ctx, token, id) }); err != nil {
		lm.logger.Error("borrow book failed", "book_id", id, "err", err)
		lm.ui.Alert(msgBorrowFailed)
		return err
	}
	lm.ui.Alert(msgBookBorrowed)
	lm.Refresh(ctx)
	return nil
}

// ------------------ Utilities ------------------

func (lm *LibraryManager) action(fn func() error) error {
	lm.state.Loading.Action = true
	defer func() { lm.state.Loading.Action = false }()
	return fn()
}

// token reads the token from current state at call time.
func (lm *LibraryManager) token(op string) (string, error) {
	if lm.state.Token == "" {
		lm.logger.Error(op+" failed", "err", ErrNoSession)
		return "", ErrNoSession
	}
	return lm.state.Token, nil
}

func formatFieldErrors(errs []FieldError) string {
	var sb strings.Builder
	sb.WriteString(msgInvalidFormTitle)
	for _, e := range errs {
		fmt.Fprintf(&sb, "\n  - %s %s", e.Field, e.Message)
	}
	return sb.String()
}

// OpenLibraryManager builds the client, opens local storage at cfg.DBPath and
// wires both into a controller.
func OpenLibraryManager(cfg Config, ui UI, logger *slog.Logger) (*LibraryManager, error) {
	db, err := NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	client := NewClient(cfg.APIURL, cfg.Timeout, cfg.RateLimit, logger)
	return NewLibraryManager(client, db, ui, logger), nil
}

// Close closes the token store when it holds resources.
func (lm *LibraryManager) Close() error {
	if c, ok := lm.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
