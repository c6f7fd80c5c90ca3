package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pixelhamza/lbms-frontend/library"
)

// importFile is the YAML layout read by the importer.
type importFile struct {
	Books []struct {
		Title           string `yaml:"title"`
		Author          string `yaml:"author"`
		Category        string `yaml:"category"`
		ISBN            string `yaml:"isbn"`
		PublishedDate   string `yaml:"published_date"`
		AvailableCopies int    `yaml:"available_copies"`
	} `yaml:"books"`
}

// batchUI prints alerts. The importer never deletes, so it never confirms.
type batchUI struct{}

func (batchUI) Alert(msg string) { fmt.Printf("  %s\n", msg) }

func (batchUI) Confirm(string) bool { return false }

func main() {
	configPath := flag.String("config", "", "YAML config file")
	booksPath := flag.String("file", "books.yaml", "YAML file with a top-level books: list")
	flag.Parse()

	if err := run(*configPath, *booksPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, booksPath string) error {
	_ = godotenv.Load()
	cfg, err := library.LoadConfig(configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(booksPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", booksPath, err)
	}
	var in importFile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse %s: %w", booksPath, err)
	}

	logger, closer, err := library.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	manager, err := library.OpenLibraryManager(cfg, batchUI{}, logger)
	if err != nil {
		return fmt.Errorf("open local storage: %w", err)
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := manager.Restore(ctx); err != nil {
		return err
	}
	if !manager.State().Authenticated {
		return errors.New("no stored session, log in with lbms first")
	}

	fmt.Printf("Importing %d book(s) from %s...\n", len(in.Books), booksPath)

	successCount := 0
	errorCount := 0

	for _, b := range in.Books {
		if ctx.Err() != nil {
			break
		}
		fmt.Printf("Importing: %s by %s...\n", b.Title, b.Author)

		manager.CancelEdit()
		manager.SetForm(library.BookForm{
			Title:           b.Title,
			Author:          b.Author,
			Category:        b.Category,
			ISBN:            b.ISBN,
			PublishedDate:   b.PublishedDate,
			AvailableCopies: b.AvailableCopies,
		})
		if err := manager.SubmitBook(ctx); err != nil {
			errorCount++
			if !manager.State().Authenticated {
				fmt.Println("Session rejected by the server; stopping.")
				break
			}
			continue
		}
		successCount++
	}

	fmt.Printf("\nImport complete: %d succeeded, %d failed\n", successCount, errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d book(s) failed to import", errorCount)
	}
	return nil
}
