package entities

import (
	"errors"
	"path"
	"strings"
)

// CueKind distinguishes short sound effects from background music cues
type CueKind string

const (
	CueKindSoundEffect CueKind = "sound_effect"
	CueKindMusic       CueKind = "music"
)

// Directory names under the audio root, one per cue kind
const (
	soundEffectDir = "Sound_Effects"
	musicDir       = "Music"
)

var ErrUnknownCueCategory = errors.New("unknown cue category")

// Cue is a single entry in a cue table: a named category of trigger
// keywords that maps to a directory of audio clips.
type Cue struct {
	Category string   `json:"category" bson:"category" yaml:"category"`
	Kind     CueKind  `json:"kind" bson:"kind" yaml:"kind"`
	Keywords []string `json:"keywords" bson:"keywords" yaml:"keywords"`
}

// CueMatch is the result of scanning a transcript against a cue table
type CueMatch struct {
	Category string
	Kind     CueKind
	Keyword  string
}

// CueTable holds the ordered keyword cues for a reading session. Order
// matters: when a transcript contains several keywords, the first
// category in table order wins.
type CueTable struct {
	cues  []Cue
	index map[string]int // category -> position in cues
}

// NewCueTable creates an empty cue table
func NewCueTable() *CueTable {
	return &CueTable{
		cues:  make([]Cue, 0),
		index: make(map[string]int),
	}
}

// DefaultCueTable returns the base cue table shared by every storybook
func DefaultCueTable() *CueTable {
	t := NewCueTable()
	t.Add(Cue{Category: "Beginning", Kind: CueKindMusic, Keywords: []string{"once upon a time", "happily ever after"}})
	t.Add(Cue{Category: "Huff", Kind: CueKindSoundEffect, Keywords: []string{"huffed", "huff", "hoff"}})
	t.Add(Cue{Category: "Fire", Kind: CueKindSoundEffect, Keywords: []string{"fire"}})
	t.Add(Cue{Category: "Footsteps", Kind: CueKindSoundEffect, Keywords: []string{"running", "ran", "walk", "walking"}})
	t.Add(Cue{Category: "Laughter", Kind: CueKindSoundEffect, Keywords: []string{"laugh"}})
	t.Add(Cue{Category: "Sad", Kind: CueKindMusic, Keywords: []string{"sad"}})
	t.Add(Cue{Category: "Horse", Kind: CueKindSoundEffect, Keywords: []string{"horse"}})
	t.Add(Cue{Category: "Clock", Kind: CueKindSoundEffect, Keywords: []string{"dong"}})
	t.Add(Cue{Category: "Knock", Kind: CueKindSoundEffect, Keywords: []string{"knock", "knocked"}})
	return t
}

// Add merges a cue into the table. Keywords for an existing category are
// appended; a new category is placed at the end of the table order. The
// kind of an existing category is never changed by a merge.
func (t *CueTable) Add(cue Cue) {
	if pos, ok := t.index[cue.Category]; ok {
		t.cues[pos].Keywords = append(t.cues[pos].Keywords, cue.Keywords...)
		return
	}

	kind := cue.Kind
	if kind == "" {
		kind = CueKindSoundEffect
	}

	t.index[cue.Category] = len(t.cues)
	t.cues = append(t.cues, Cue{
		Category: cue.Category,
		Kind:     kind,
		Keywords: append([]string(nil), cue.Keywords...),
	})
}

// AddKeyword merges a single (category, keyword) pair into the table
func (t *CueTable) AddKeyword(category, keyword string) {
	t.Add(Cue{Category: category, Keywords: []string{keyword}})
}

// Merge adds every cue from another list into the table, in order
func (t *CueTable) Merge(cues []Cue) {
	for _, cue := range cues {
		t.Add(cue)
	}
}

// Match scans a transcript for cue keywords. Matching is case-insensitive
// substring search. The first category in table order with any keyword
// present wins; nil means no cue was heard.
func (t *CueTable) Match(transcript string) *CueMatch {
	text := strings.ToLower(transcript)
	for _, cue := range t.cues {
		for _, keyword := range cue.Keywords {
			if strings.Contains(text, strings.ToLower(keyword)) {
				return &CueMatch{
					Category: cue.Category,
					Kind:     cue.Kind,
					Keyword:  keyword,
				}
			}
		}
	}
	return nil
}

// Location returns the directory for a category's audio clips, relative
// to the audio root. Sound effects live under Sound_Effects/<Category>,
// music under Music/<Category>.
func (t *CueTable) Location(category string) (string, error) {
	pos, ok := t.index[category]
	if !ok {
		return "", ErrUnknownCueCategory
	}

	dir := soundEffectDir
	if t.cues[pos].Kind == CueKindMusic {
		dir = musicDir
	}
	return path.Join(dir, category), nil
}

// Categories returns the category names in table order
func (t *CueTable) Categories() []string {
	out := make([]string, len(t.cues))
	for i, cue := range t.cues {
		out[i] = cue.Category
	}
	return out
}

// Cues returns a copy of the table entries in order
func (t *CueTable) Cues() []Cue {
	out := make([]Cue, len(t.cues))
	copy(out, t.cues)
	return out
}
