package library

import (
	"fmt"
	"io"
	"strings"
)

// RenderAuth draws the logged-out view.
func RenderAuth(w io.Writer, s State) {
	if s.LoginMode {
		fmt.Fprintln(w, "== Log In ==")
		if s.Loading.Auth {
			fmt.Fprintln(w, "Loading...")
		}
		fmt.Fprintln(w, "Commands: login, toggle (Don't have an account? Register), exit")
		return
	}
	fmt.Fprintln(w, "== Register ==")
	if s.Loading.Auth {
		fmt.Fprintln(w, "Loading...")
	}
	fmt.Fprintln(w, "Commands: register, toggle (Already have an account? Log In), exit")
}

// RenderMain draws every section of the logged-in view.
func RenderMain(w io.Writer, s State) {
	fmt.Fprintln(w, "Library Management System")
	if s.Username != "" {
		fmt.Fprintf(w, "Logged in as %s\n", s.Username)
	}
	if s.SearchQuery != "" {
		fmt.Fprintf(w, "Search: %q\n", s.SearchQuery)
	}
	fmt.Fprintln(w)
	RenderForm(w, s)
	fmt.Fprintln(w)
	RenderCatalog(w, s)
	fmt.Fprintln(w)
	RenderBorrowed(w, s)
	fmt.Fprintln(w)
	RenderMostBorrowed(w, s)
}

// RenderForm shows the form buffer and whether it is in add or edit mode.
func RenderForm(w io.Writer, s State) {
	if s.Editing() {
		fmt.Fprintf(w, "== Edit Book (ID %d) ==\n", s.EditingID)
	} else {
		fmt.Fprintln(w, "== Add New Book ==")
	}
	if s.Loading.Action {
		fmt.Fprintln(w, "Loading...")
	}
	f := s.Form
	if f == (BookForm{}) {
		fmt.Fprintln(w, "(form is empty)")
		return
	}
	fmt.Fprintf(w, "Title: %s | Author: %s | Category: %s\n", f.Title, f.Author, f.Category)
	fmt.Fprintf(w, "ISBN: %s | Published: %s | Copies: %d\n", f.ISBN, f.PublishedDate, f.AvailableCopies)
}

// RenderCatalog lists the loaded page followed by the pagination controls.
func RenderCatalog(w io.Writer, s State) {
	fmt.Fprintln(w, "== Public Book Catalog ==")
	if s.Loading.Books {
		fmt.Fprintln(w, "Loading books...")
		return
	}
	if len(s.Books) == 0 {
		fmt.Fprintln(w, "No books found.")
	} else {
		fmt.Fprintf(w, "%-5s %-30s %-22s %-15s %-14s %s\n", "ID", "Title", "Author", "Category", "ISBN", "Copies")
		fmt.Fprintln(w, strings.Repeat("-", 95))
		for _, b := range s.Books {
			fmt.Fprintf(w, "%-5d %-30s %-22s %-15s %-14s %d\n",
				b.ID,
				truncateString(b.Title, 30),
				truncateString(b.Author, 22),
				truncateString(b.Category, 15),
				b.ISBN,
				b.AvailableCopies)
		}
	}
	fmt.Fprintln(w, RenderPagination(s))
}

// RenderPagination shows each control as enabled or disabled.
func RenderPagination(s State) string {
	return control("Previous", s.CanPrev()) + " " + control("Next", s.CanNext())
}

func control(label string, enabled bool) string {
	if enabled {
		return "[" + label + "]"
	}
	return "(" + label + " disabled)"
}

// RenderBorrowed lists the titles the user has borrowed.
func RenderBorrowed(w io.Writer, s State) {
	fmt.Fprintln(w, "== My Borrowed Books ==")
	if len(s.Borrowed) == 0 {
		fmt.Fprintln(w, "You have not borrowed any books yet.")
		return
	}
	for _, e := range s.Borrowed {
		fmt.Fprintf(w, "  • %s\n", e.Book.Title)
	}
}

// RenderMostBorrowed lists the ranking with each title's borrow count.
func RenderMostBorrowed(w io.Writer, s State) {
	fmt.Fprintln(w, "== Most Borrowed Books ==")
	if len(s.MostBorrowed) == 0 {
		fmt.Fprintln(w, "No books have been borrowed yet.")
		return
	}
	for _, e := range s.MostBorrowed {
		fmt.Fprintf(w, "  • %s by %s\n", e.Title, e.Author)
		fmt.Fprintf(w, "    Total Borrows: %d\n", e.TotalBorrows)
	}
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	return string(r[:maxLength-3]) + "..."
}
