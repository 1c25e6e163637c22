package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/fablebox/server/domain/entities"
)

var ErrBookNotFound = errors.New("book not found")

// Catalog is the storybook library: the set of books a reader can pick
// from, plus where their story text files live.
type Catalog struct {
	dir   string
	books []entities.Book
	index map[string]int
}

type catalogFile struct {
	Books []entities.Book `yaml:"books"`
}

// Load reads a catalog YAML file. Story text files are resolved relative
// to the catalog file's directory. Environment variables in the file are
// expanded before parsing.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cf catalogFile
	if err := yaml.Unmarshal([]byte(expanded), &cf); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	return New(filepath.Dir(path), cf.Books)
}

// New builds a catalog from a list of books
func New(dir string, books []entities.Book) (*Catalog, error) {
	c := &Catalog{
		dir:   dir,
		books: make([]entities.Book, 0, len(books)),
		index: make(map[string]int),
	}

	for _, book := range books {
		if err := book.Validate(); err != nil {
			return nil, fmt.Errorf("invalid book %q: %w", book.ID, err)
		}
		if _, exists := c.index[book.ID]; exists {
			return nil, fmt.Errorf("duplicate book id %q", book.ID)
		}
		c.index[book.ID] = len(c.books)
		c.books = append(c.books, book)
	}

	return c, nil
}

// Default returns the built-in catalog used when no catalog file exists:
// the stock fairy tales plus a general free-reading entry.
func Default(dir string) (*Catalog, error) {
	return New(dir, []entities.Book{
		{ID: "cinderella", Title: "Cinderella", TextFile: "cinderella.txt"},
		{ID: "three-little-pigs", Title: "The Three Little Pigs", TextFile: "three_little_pigs.txt"},
		{ID: "general", Title: "General", TextFile: "general.txt"},
	})
}

// Discover loads <dir>/catalog.yaml when present, falling back to the
// built-in catalog otherwise.
func Discover(dir string) (*Catalog, error) {
	path := filepath.Join(dir, "catalog.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}
	return Default(dir)
}

// Books returns all books in catalog order
func (c *Catalog) Books() []entities.Book {
	out := make([]entities.Book, len(c.books))
	copy(out, c.books)
	return out
}

// Get returns the book with the given id
func (c *Catalog) Get(id string) (*entities.Book, error) {
	pos, ok := c.index[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	book := c.books[pos]
	return &book, nil
}

// StoryText reads the story text for a book so the device can display it
// while the reader reads aloud
func (c *Catalog) StoryText(id string) (string, error) {
	book, err := c.Get(id)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(c.dir, book.TextFile))
	if err != nil {
		return "", fmt.Errorf("reading story text for %q: %w", id, err)
	}
	return string(data), nil
}

// PhraseHints collects every cue keyword across the catalog, for seeding
// the speech recognizer
func (c *Catalog) PhraseHints() []string {
	seen := make(map[string]bool)
	hints := make([]string, 0)

	add := func(words []string) {
		for _, w := range words {
			if !seen[w] {
				seen[w] = true
				hints = append(hints, w)
			}
		}
	}

	for _, cue := range entities.DefaultCueTable().Cues() {
		add(cue.Keywords)
	}
	for _, book := range c.books {
		for _, cue := range book.Cues {
			add(cue.Keywords)
		}
	}

	return hints
}
