package entities

import "errors"

// Book is a storybook in the library: a title, the story text file, and
// any cues specific to this book on top of the default table.
type Book struct {
	ID       string `json:"id" bson:"_id" yaml:"id"`
	Title    string `json:"title" bson:"title" yaml:"title"`
	TextFile string `json:"text_file" bson:"text_file" yaml:"text_file"`
	Cues     []Cue  `json:"cues,omitempty" bson:"cues,omitempty" yaml:"cues,omitempty"`
}

func (b *Book) Validate() error {
	if b.ID == "" {
		return errors.New("book id is required")
	}
	if b.Title == "" {
		return errors.New("book title is required")
	}
	if b.TextFile == "" {
		return errors.New("book text file is required")
	}
	return nil
}

// CueTable builds this book's full cue table: the defaults merged with
// the book's own cues.
func (b *Book) CueTable() *CueTable {
	table := DefaultCueTable()
	table.Merge(b.Cues)
	return table
}
