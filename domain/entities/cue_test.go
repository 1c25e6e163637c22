package entities

import (
	"errors"
	"testing"
)

func TestDefaultCueTableMatch(t *testing.T) {
	table := DefaultCueTable()

	match := table.Match("and he huffed and he puffed")
	if match == nil {
		t.Fatal("Expected a match for 'huffed'")
	}
	if match.Category != "Huff" {
		t.Errorf("Expected category Huff, got %s", match.Category)
	}
	if match.Kind != CueKindSoundEffect {
		t.Errorf("Expected sound effect kind, got %s", match.Kind)
	}

	if m := table.Match("nothing interesting here"); m != nil {
		t.Errorf("Expected no match, got %s", m.Category)
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	table := DefaultCueTable()

	match := table.Match("Once Upon A Time there lived a girl")
	if match == nil {
		t.Fatal("Expected a match for 'Once Upon A Time'")
	}
	if match.Category != "Beginning" {
		t.Errorf("Expected category Beginning, got %s", match.Category)
	}
	if match.Kind != CueKindMusic {
		t.Errorf("Expected music kind, got %s", match.Kind)
	}
}

func TestMatchFirstCategoryWins(t *testing.T) {
	table := DefaultCueTable()

	// "fire" (Fire) comes before "knock" (Knock) in table order even though
	// "knocked" appears first in the text
	match := table.Match("she knocked over the lamp and started a fire")
	if match == nil {
		t.Fatal("Expected a match")
	}
	if match.Category != "Fire" {
		t.Errorf("Expected first category in table order (Fire), got %s", match.Category)
	}
}

func TestAddKeywordMerging(t *testing.T) {
	table := NewCueTable()
	table.Add(Cue{Category: "Greetings", Kind: CueKindSoundEffect, Keywords: []string{"hello", "hola"}})
	table.Add(Cue{Category: "Goodbyes", Kind: CueKindSoundEffect, Keywords: []string{"bye", "adios"}})

	table.AddKeyword("Greetings", "annyeong")
	table.AddKeyword("Questions", "how are you")

	if match := table.Match("annyeong friend"); match == nil || match.Category != "Greetings" {
		t.Errorf("Expected merged keyword to match Greetings, got %v", match)
	}

	if match := table.Match("how are you today"); match == nil || match.Category != "Questions" {
		t.Errorf("Expected new category Questions, got %v", match)
	}

	categories := table.Categories()
	expected := []string{"Greetings", "Goodbyes", "Questions"}
	if len(categories) != len(expected) {
		t.Fatalf("Expected %d categories, got %d", len(expected), len(categories))
	}
	for i, want := range expected {
		if categories[i] != want {
			t.Errorf("Expected category %s at position %d, got %s", want, i, categories[i])
		}
	}
}

func TestMergeKeepsExistingKind(t *testing.T) {
	table := DefaultCueTable()
	table.Merge([]Cue{{Category: "Sad", Kind: CueKindSoundEffect, Keywords: []string{"weeping"}}})

	match := table.Match("she was weeping")
	if match == nil {
		t.Fatal("Expected a match for merged keyword")
	}
	if match.Kind != CueKindMusic {
		t.Errorf("Merging must not change the category kind, got %s", match.Kind)
	}
}

func TestLocation(t *testing.T) {
	table := DefaultCueTable()

	loc, err := table.Location("Clock")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loc != "Sound_Effects/Clock" {
		t.Errorf("Expected Sound_Effects/Clock, got %s", loc)
	}

	loc, err = table.Location("Beginning")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loc != "Music/Beginning" {
		t.Errorf("Expected Music/Beginning, got %s", loc)
	}

	if _, err := table.Location("Dragon"); !errors.Is(err, ErrUnknownCueCategory) {
		t.Errorf("Expected ErrUnknownCueCategory, got %v", err)
	}
}

func TestBookCueTable(t *testing.T) {
	book := Book{
		ID:       "cinderella",
		Title:    "Cinderella",
		TextFile: "cinderella.txt",
		Cues: []Cue{
			{Category: "Magic", Kind: CueKindSoundEffect, Keywords: []string{"bibbidi"}},
			{Category: "Clock", Keywords: []string{"midnight"}},
		},
	}

	table := book.CueTable()

	if match := table.Match("bibbidi bobbidi boo"); match == nil || match.Category != "Magic" {
		t.Errorf("Expected book cue Magic, got %v", match)
	}

	if match := table.Match("the stroke of midnight"); match == nil || match.Category != "Clock" {
		t.Errorf("Expected merged Clock keyword, got %v", match)
	}

	// Defaults still present
	if match := table.Match("he huffed"); match == nil || match.Category != "Huff" {
		t.Errorf("Expected default Huff cue, got %v", match)
	}
}
