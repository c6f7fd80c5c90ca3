package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/pixelhamza/lbms-frontend/library"
)

// terminalUI answers the controller's alerts and confirmations on the
// terminal.
type terminalUI struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (u *terminalUI) Alert(msg string) {
	fmt.Fprintf(u.out, "» %s\n", msg)
}

func (u *terminalUI) Confirm(prompt string) bool {
	fmt.Fprintf(u.out, "%s [y/N]: ", prompt)
	if !u.sc.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(u.sc.Text()))
	return answer == "y" || answer == "yes"
}

type shell struct {
	sc  *bufio.Scanner
	out io.Writer
	in  *os.File
	mgr *library.LibraryManager
}

func runShell(ctx context.Context, cfg library.Config, in *os.File, out io.Writer) error {
	logger, closer, err := library.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	sc := bufio.NewScanner(in)
	ui := &terminalUI{sc: sc, out: out}

	mgr, err := library.OpenLibraryManager(cfg, ui, logger)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	defer mgr.Close()

	if err := mgr.Restore(ctx); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}

	sh := &shell{sc: sc, out: out, in: in, mgr: mgr}
	fmt.Fprintln(out, "Welcome to the Library Management System!")
	fmt.Fprintf(out, "Connected to %s. Type 'help' for commands.\n\n", cfg.APIURL)
	sh.render()

	for ctx.Err() == nil {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() {
			break
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		if cmd == "" {
			continue
		}
		if cmd == "exit" || cmd == "quit" {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if mgr.State().Authenticated {
			sh.dispatchMain(ctx, cmd)
		} else {
			sh.dispatchAuth(ctx, cmd)
		}
	}
	return nil
}

func (sh *shell) render() {
	s := sh.mgr.State()
	if s.Authenticated {
		library.RenderMain(sh.out, s)
	} else {
		library.RenderAuth(sh.out, s)
	}
}

func (sh *shell) dispatchAuth(ctx context.Context, cmd string) {
	switch cmd {
	case "login":
		sh.handleCredentials(ctx, true)
	case "register":
		sh.handleCredentials(ctx, false)
	case "toggle":
		sh.mgr.ToggleAuthMode()
		library.RenderAuth(sh.out, sh.mgr.State())
	case "help":
		library.RenderAuth(sh.out, sh.mgr.State())
	default:
		fmt.Fprintln(sh.out, "Unknown command. Log in or register first; type 'help' for commands.")
	}
}

func (sh *shell) dispatchMain(ctx context.Context, cmd string) {
	switch cmd {
	case "list books", "books":
		library.RenderCatalog(sh.out, sh.mgr.State())
	case "search":
		sh.handleSearch(ctx)
	case "next":
		sh.handlePage(ctx, true)
	case "prev", "previous":
		sh.handlePage(ctx, false)
	case "add book":
		sh.handleAddBook(ctx)
	case "edit book":
		sh.handleEditBook(ctx)
	case "save book":
		sh.handleSaveBook(ctx)
	case "cancel edit":
		sh.mgr.CancelEdit()
		library.RenderForm(sh.out, sh.mgr.State())
	case "delete book":
		sh.handleDeleteBook(ctx)
	case "borrow":
		sh.handleBorrow(ctx)
	case "borrowed":
		library.RenderBorrowed(sh.out, sh.mgr.State())
	case "most borrowed":
		library.RenderMostBorrowed(sh.out, sh.mgr.State())
	case "refresh":
		sh.mgr.Refresh(ctx)
		sh.afterRequest()
	case "logout":
		sh.mgr.Logout()
		fmt.Fprintln(sh.out, "Logged out.")
		library.RenderAuth(sh.out, sh.mgr.State())
	case "help":
		printMainHelp(sh.out)
	default:
		fmt.Fprintln(sh.out, "Unknown command. Type 'help' for the available commands.")
	}
}

func printMainHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w, "  Catalog: list books, search, next, prev, refresh")
	fmt.Fprintln(w, "  Books: add book, edit book, save book, cancel edit, delete book")
	fmt.Fprintln(w, "  Borrowing: borrow, borrowed, most borrowed")
	fmt.Fprintln(w, "  System: logout, exit")
}

// afterRequest re-renders, falling back to the auth view when a 401 ended the
// session mid-command.
func (sh *shell) afterRequest() {
	if !sh.mgr.State().Authenticated {
		fmt.Fprintln(sh.out, "Your session has ended. Please log in again.")
	}
	sh.render()
}

// ------------------ Auth ------------------

func (sh *shell) handleCredentials(ctx context.Context, login bool) {
	if login != sh.mgr.State().LoginMode {
		sh.mgr.ToggleAuthMode()
	}

	username, ok := sh.prompt("Username: ")
	if !ok || username == "" {
		fmt.Fprintln(sh.out, "Error: Username cannot be empty")
		return
	}
	password, err := sh.readPassword("Password: ")
	if err != nil {
		fmt.Fprintf(sh.out, "Error reading password: %v\n", err)
		return
	}
	if password == "" {
		fmt.Fprintln(sh.out, "Error: Password cannot be empty")
		return
	}

	if login {
		if err := sh.mgr.Login(ctx, username, password); err != nil {
			return
		}
		sh.afterRequest()
		return
	}
	if err := sh.mgr.Register(ctx, username, password); err != nil {
		return
	}
	library.RenderAuth(sh.out, sh.mgr.State())
}

// readPassword masks input on a terminal and falls back to a plain line when
// stdin is piped.
func (sh *shell) readPassword(prompt string) (string, error) {
	if sh.in == nil || !term.IsTerminal(int(sh.in.Fd())) {
		line, _ := sh.prompt(prompt)
		return line, nil
	}
	fmt.Fprint(sh.out, prompt)
	bytePassword, err := term.ReadPassword(int(sh.in.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(sh.out) // Add newline after password input
	return strings.TrimSpace(string(bytePassword)), nil
}

// ------------------ Catalog ------------------

// handleSearch replaces the search text. An empty answer clears it.
func (sh *shell) handleSearch(ctx context.Context) {
	label := "Search (empty clears): "
	if current := sh.mgr.State().SearchQuery; current != "" {
		label = fmt.Sprintf("Search (empty clears) [%s]: ", current)
	}
	query, ok := sh.prompt(label)
	if !ok {
		return
	}
	sh.mgr.SetSearch(query)
	_ = sh.mgr.Search(ctx)
	sh.afterCatalog()
}

func (sh *shell) handlePage(ctx context.Context, next bool) {
	s := sh.mgr.State()
	if next && !s.CanNext() {
		fmt.Fprintln(sh.out, "Next is disabled: this is the last page.")
		return
	}
	if !next && !s.CanPrev() {
		fmt.Fprintln(sh.out, "Previous is disabled: this is the first page.")
		return
	}

	if next {
		_ = sh.mgr.NextPage(ctx)
	} else {
		_ = sh.mgr.PrevPage(ctx)
	}
	sh.afterCatalog()
}

func (sh *shell) afterCatalog() {
	if !sh.mgr.State().Authenticated {
		sh.afterRequest()
		return
	}
	library.RenderCatalog(sh.out, sh.mgr.State())
}

// ------------------ Book form ------------------

func (sh *shell) handleAddBook(ctx context.Context) {
	if s := sh.mgr.State(); s.Editing() {
		fmt.Fprintf(sh.out, "Leaving edit mode for book %d.\n", s.EditingID)
		sh.mgr.CancelEdit()
	}
	fmt.Fprintln(sh.out, "Add New Book (press Enter to keep the value in brackets)")
	sh.fillAndSubmit(ctx)
}

func (sh *shell) handleEditBook(ctx context.Context) {
	id, ok := sh.readID("Book ID: ")
	if !ok {
		return
	}
	book, found := sh.mgr.BookByID(id)
	if !found {
		fmt.Fprintf(sh.out, "Book %d is not on the current page.\n", id)
		return
	}
	sh.mgr.StartEdit(book)
	fmt.Fprintf(sh.out, "Edit Book '%s' (press Enter to keep the value in brackets)\n", book.Title)
	sh.fillAndSubmit(ctx)
}

// handleSaveBook re-submits the current buffer, e.g. after a failed save.
func (sh *shell) handleSaveBook(ctx context.Context) {
	library.RenderForm(sh.out, sh.mgr.State())
	sh.fillAndSubmit(ctx)
}

func (sh *shell) fillAndSubmit(ctx context.Context) {
	f, ok := sh.readForm(sh.mgr.Form())
	if !ok {
		return
	}
	sh.mgr.SetForm(f)
	if err := sh.mgr.SubmitBook(ctx); err != nil {
		if s := sh.mgr.State(); s.Authenticated {
			fmt.Fprintln(sh.out, "The form was kept; use 'save book' to retry or 'cancel edit' to discard it.")
		}
		return
	}
	sh.afterCatalog()
}

func (sh *shell) readForm(f library.BookForm) (library.BookForm, bool) {
	fields := []struct {
		label string
		dst   *string
	}{
		{"Title", &f.Title},
		{"Author", &f.Author},
		{"Category", &f.Category},
		{"ISBN", &f.ISBN},
		{"Published Date (YYYY-MM-DD)", &f.PublishedDate},
	}
	for _, field := range fields {
		v, ok := sh.promptDefault(field.label, *field.dst)
		if !ok {
			return f, false
		}
		*field.dst = v
	}

	current := ""
	if f.AvailableCopies != 0 {
		current = strconv.Itoa(f.AvailableCopies)
	}
	copies, ok := sh.promptDefault("Available Copies", current)
	if !ok {
		return f, false
	}
	n, err := strconv.Atoi(copies)
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid number of copies: %s\n", copies)
		return f, false
	}
	f.AvailableCopies = n
	return f, true
}

// ------------------ Mutations ------------------

func (sh *shell) handleDeleteBook(ctx context.Context) {
	id, ok := sh.readID("Book ID: ")
	if !ok {
		return
	}
	if err := sh.mgr.DeleteBook(ctx, id); err != nil {
		if !sh.mgr.State().Authenticated {
			sh.afterRequest()
		}
		return
	}
	sh.afterCatalog()
}

func (sh *shell) handleBorrow(ctx context.Context) {
	id, ok := sh.readID("Book ID: ")
	if !ok {
		return
	}
	if err := sh.mgr.Borrow(ctx, id); err != nil {
		if !sh.mgr.State().Authenticated {
			sh.afterRequest()
		}
		return
	}
	sh.afterRequest()
}

// ------------------ Input helpers ------------------

func (sh *shell) prompt(label string) (string, bool) {
	fmt.Fprint(sh.out, label)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

func (sh *shell) promptDefault(label, current string) (string, bool) {
	if current != "" {
		label = fmt.Sprintf("%s [%s]", label, current)
	}
	v, ok := sh.prompt(label + ": ")
	if !ok {
		return "", false
	}
	if v == "" {
		return current, true
	}
	return v, true
}

func (sh *shell) readID(label string) (int64, bool) {
	raw, ok := sh.prompt(label)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(sh.out, "Invalid book ID: %s\n", raw)
		return 0, false
	}
	return id, true
}
