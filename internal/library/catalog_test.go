package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fablebox/server/domain/entities"
)

const testCatalogYAML = `
books:
  - id: cinderella
    title: Cinderella
    text_file: cinderella.txt
    cues:
      - category: Magic
        kind: sound_effect
        keywords: ["bibbidi", "wand"]
  - id: general
    title: General
    text_file: general.txt
`

func writeTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(testCatalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	story := "Once upon a time there lived a girl named Cinderella."
	if err := os.WriteFile(filepath.Join(dir, "cinderella.txt"), []byte(story), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := Load(writeTestCatalog(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	books := catalog.Books()
	if len(books) != 2 {
		t.Fatalf("Expected 2 books, got %d", len(books))
	}
	if books[0].ID != "cinderella" || books[1].ID != "general" {
		t.Errorf("Books out of order: %s, %s", books[0].ID, books[1].ID)
	}

	book, err := catalog.Get("cinderella")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if book.Title != "Cinderella" {
		t.Errorf("Expected title Cinderella, got %s", book.Title)
	}
	if len(book.Cues) != 1 || book.Cues[0].Category != "Magic" {
		t.Errorf("Expected Magic cue on cinderella, got %+v", book.Cues)
	}

	if _, err := catalog.Get("missing"); !errors.Is(err, ErrBookNotFound) {
		t.Errorf("Expected ErrBookNotFound, got %v", err)
	}
}

func TestStoryText(t *testing.T) {
	catalog, err := Load(writeTestCatalog(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	text, err := catalog.StoryText("cinderella")
	if err != nil {
		t.Fatalf("StoryText failed: %v", err)
	}
	if text == "" {
		t.Error("Expected story text, got empty string")
	}

	// Book exists but its text file does not
	if _, err := catalog.StoryText("general"); err == nil {
		t.Error("Expected error for missing text file")
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog, err := Default("Library")
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	books := catalog.Books()
	if len(books) != 3 {
		t.Fatalf("Expected 3 default books, got %d", len(books))
	}

	for _, id := range []string{"cinderella", "three-little-pigs", "general"} {
		if _, err := catalog.Get(id); err != nil {
			t.Errorf("Expected default book %s, got error: %v", id, err)
		}
	}
}

func TestDiscoverPrefersCatalogFile(t *testing.T) {
	dir := filepath.Dir(writeTestCatalog(t))

	catalog, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	// The shipped catalog.yaml wins over the built-in book list
	book, err := catalog.Get("cinderella")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(book.Cues) != 1 || book.Cues[0].Category != "Magic" {
		t.Errorf("Expected book cues from catalog.yaml, got %+v", book.Cues)
	}
	if _, err := catalog.Get("three-little-pigs"); !errors.Is(err, ErrBookNotFound) {
		t.Error("Expected only the books listed in catalog.yaml")
	}
}

func TestDiscoverFallsBackToDefault(t *testing.T) {
	catalog, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(catalog.Books()) != 3 {
		t.Errorf("Expected the 3 built-in books, got %d", len(catalog.Books()))
	}
}

func TestPhraseHints(t *testing.T) {
	catalog, err := Load(writeTestCatalog(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	hints := catalog.PhraseHints()
	seen := make(map[string]int)
	for _, h := range hints {
		seen[h]++
	}

	// Default keywords and book cues both present, no duplicates
	for _, want := range []string{"huffed", "once upon a time", "bibbidi", "wand"} {
		if seen[want] != 1 {
			t.Errorf("Expected hint %q exactly once, got %d", want, seen[want])
		}
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := New("x", []entities.Book{
		{ID: "a", Title: "A", TextFile: "a.txt"},
		{ID: "a", Title: "A again", TextFile: "a2.txt"},
	})
	if err == nil {
		t.Error("Expected error for duplicate book id")
	}
}
