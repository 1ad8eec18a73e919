package story

import (
	"encoding/json"
	"fmt"
)

// Kind is the document kind produced by the importer.
const Kind = "story"

// DefaultSpeaker narrates any line without a speaker of its own.
const DefaultSpeaker = "Narrator"

// LongThreshold is the paragraph count at which a document becomes long.
const LongThreshold = 10

type LengthClass string

const (
	LengthShort LengthClass = "short"
	LengthLong  LengthClass = "long"
)

// ClassifyLength maps a paragraph count onto a LengthClass.
func ClassifyLength(paragraphs int) LengthClass {
	if paragraphs < LongThreshold {
		return LengthShort
	}
	return LengthLong
}

type Metadata struct {
	SourceName  string      `json:"source"`
	Kind        string      `json:"type"`
	LengthClass LengthClass `json:"length"`
}

// Paragraph is one speaker-attributed line of prose.
type Paragraph struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// UnmarshalJSON accepts both {"speaker","text"} objects and bare strings.
// A bare string has no speaker; Document.UnmarshalJSON fills in the default.
func (p *Paragraph) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		p.Speaker = ""
		p.Text = text
		return nil
	}

	type plain Paragraph
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("paragraph is neither a string nor an object: %w", err)
	}
	*p = Paragraph(v)
	return nil
}

// Document is a normalized narration: ordered, speaker-tagged paragraphs.
// Treat it as immutable once built.
type Document struct {
	Title          string      `json:"title"`
	Metadata       Metadata    `json:"metadata"`
	DefaultSpeaker string      `json:"speaker"`
	Paragraphs     []Paragraph `json:"paragraphs"`
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.DefaultSpeaker == "" {
		v.DefaultSpeaker = DefaultSpeaker
	}
	for i := range v.Paragraphs {
		if v.Paragraphs[i].Speaker == "" {
			v.Paragraphs[i].Speaker = v.DefaultSpeaker
		}
	}
	*d = Document(v)
	return nil
}

// Validate reports whether the document can be played.
func (d *Document) Validate() error {
	if len(d.Paragraphs) == 0 {
		return fmt.Errorf("document %q has no paragraphs", d.Title)
	}
	for i, p := range d.Paragraphs {
		if p.Text == "" {
			return fmt.Errorf("document %q paragraph %d has no text", d.Title, i)
		}
		if p.Speaker == "" {
			return fmt.Errorf("document %q paragraph %d has no speaker", d.Title, i)
		}
	}
	return nil
}

// Len returns the number of paragraphs.
func (d *Document) Len() int {
	return len(d.Paragraphs)
}
