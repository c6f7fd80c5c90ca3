package library

// Book mirrors a catalog record owned by the remote service.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	ISBN            string `json:"isbn"`
	PublishedDate   string `json:"published_date"`
	AvailableCopies int    `json:"available_copies"`
}

// BorrowedEntry is one of the logged-in user's borrow records.
type BorrowedEntry struct {
	ID   int64 `json:"id"`
	Book Book  `json:"book"`
}

// MostBorrowedEntry is a read-only aggregate row.
type MostBorrowedEntry struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	TotalBorrows int    `json:"total_borrows"`
}

// BookPage is one page of the catalog. Next and Previous are the
// server-provided cursor URLs; empty when there is no such page.
type BookPage struct {
	Results  []Book
	Next     string
	Previous string
}

// BookForm is the create/edit buffer. It carries no id; the edit target
// lives on State.
type BookForm struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	Category        string `json:"category" validate:"required"`
	ISBN            string `json:"isbn" validate:"required,isbn_len"`
	PublishedDate   string `json:"published_date" validate:"required,datetime=2006-01-02"`
	AvailableCopies int    `json:"available_copies" validate:"required,min=1"`
}

// Loading holds the coarse-grained in-flight flags.
type Loading struct {
	Auth   bool
	Books  bool
	Action bool
}

// State is everything the client knows. Only LibraryManager mutates it.
type State struct {
	Token         string
	Authenticated bool
	LoginMode     bool
	Username      string

	Books        []Book
	Borrowed     []BorrowedEntry
	MostBorrowed []MostBorrowedEntry
	NextURL      string
	PrevURL      string
	SearchQuery  string

	Form      BookForm
	EditingID int64

	Loading Loading
}

// CanNext reports whether the Next control is enabled.
func (s State) CanNext() bool { return s.NextURL != "" }

// CanPrev reports whether the Previous control is enabled.
func (s State) CanPrev() bool { return s.PrevURL != "" }

// Editing reports whether the form is in update mode.
func (s State) Editing() bool { return s.EditingID != 0 }
