package normalize

import (
	"errors"
	"strings"
	"testing"

	"bigpicture/internal/domain/story"
)

func TestLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		speaker string
		text    string
	}{
		{"explicit tag", `Neil: "Let's go"`, "Neil", "Let's go"},
		{"explicit tag wins over lexical", "Krish: Neil said hello", "Krish", "Neil said hello"},
		{"explicit tag with digits", "Guide 2:   Welcome aboard", "Guide 2", "Welcome aboard"},
		{"lexical comma", `Neil said, "Let's go to the mall."`, "Neil", "Let's go to the mall."},
		{"lexical trailing attribution", `"Sure," Kanishq grinned`, "Kanishq", "Sure,"},
		{"lexical case insensitive", "NEIL SAID, hi", "Neil", "hi"},
		{"lexical third speaker", `Krish joined, "Me too!"`, "Krish", "Me too!"},
		{"lexical without remainder falls through", "Neil said", "Narrator", "Neil said"},
		{"empty explicit falls through", "Neil:", "Narrator", "Neil:"},
		{"stop marker", "Stop 1 - The food court", "Narrator", "Stop 1 - The food court"},
		{"leading quote", `"Hello there"`, "Narrator", "Hello there"},
		{"curly quotes", "“Hello there”", "Narrator", "Hello there"},
		{"default", "  The sun was shining.  ", "Narrator", "The sun was shining."},
		{"control characters", "a\tb", "Narrator", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := defaultNormalizer.Line(tt.line)
			if !ok {
				t.Fatalf("Line(%q) skipped the line", tt.line)
			}
			if p.Speaker != tt.speaker {
				t.Errorf("Line(%q).Speaker = %q, want %q", tt.line, p.Speaker, tt.speaker)
			}
			if p.Text != tt.text {
				t.Errorf("Line(%q).Text = %q, want %q", tt.line, p.Text, tt.text)
			}
		})
	}
}

func TestLineWithoutSpeakableText(t *testing.T) {
	for _, line := range []string{"", "   ", "\x00\x1b", "\"", "“”", " \" "} {
		if p, ok := defaultNormalizer.Line(line); ok {
			t.Errorf("Line(%q) = %+v, want skipped", line, p)
		}
	}
}

func TestNormalizeSkipsControlAndQuoteOnlyLines(t *testing.T) {
	doc, err := Normalize("Hello\n\x00\x1b\n\"\nBye", "noise.txt", "Noise")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if doc.Len() != 2 || doc.Paragraphs[0].Text != "Hello" || doc.Paragraphs[1].Text != "Bye" {
		t.Errorf("paragraphs = %+v", doc.Paragraphs)
	}

	if _, err := Normalize("\x00\n\"\"\n", "noise.txt", "Noise"); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Normalize(noise only) error = %v, want ErrEmptyInput", err)
	}
}

func TestNormalizeCountsLines(t *testing.T) {
	raw := "\n\n first \r\n second\r third \n   \n"
	doc, err := Normalize(raw, "walk.txt", "Walk")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if doc.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", doc.Len())
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if doc.Paragraphs[i].Text != w {
			t.Errorf("paragraph %d = %q, want %q", i, doc.Paragraphs[i].Text, w)
		}
	}
	if doc.Title != "Walk" || doc.Metadata.SourceName != "walk.txt" {
		t.Errorf("title/source = %q/%q", doc.Title, doc.Metadata.SourceName)
	}
	if doc.Metadata.Kind != story.Kind {
		t.Errorf("Kind = %q, want %q", doc.Metadata.Kind, story.Kind)
	}
	if doc.DefaultSpeaker != "Narrator" {
		t.Errorf("DefaultSpeaker = %q", doc.DefaultSpeaker)
	}
}

func TestNormalizeLengthClass(t *testing.T) {
	tests := []struct {
		lines    int
		expected story.LengthClass
	}{
		{1, story.LengthShort},
		{9, story.LengthShort},
		{10, story.LengthLong},
		{11, story.LengthLong},
	}

	for _, tt := range tests {
		raw := strings.Repeat("line\n", tt.lines)
		doc, err := Normalize(raw, "src.txt", "t")
		if err != nil {
			t.Fatalf("Normalize(%d lines) error = %v", tt.lines, err)
		}
		if doc.Metadata.LengthClass != tt.expected {
			t.Errorf("%d lines: LengthClass = %s, want %s", tt.lines, doc.Metadata.LengthClass, tt.expected)
		}
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t\n\r\n"} {
		doc, err := Normalize(raw, "empty.txt", "Empty")
		if !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Normalize(%q) error = %v, want ErrEmptyInput", raw, err)
		}
		if doc != nil {
			t.Errorf("Normalize(%q) returned a partial document", raw)
		}
	}
}

func TestCustomAttributionTable(t *testing.T) {
	n, err := New(Config{
		DefaultSpeaker: "Host",
		Attributions:   []Attribution{{Speaker: "Ada", Verbs: []string{"wrote", "noted"}}},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	doc, err := n.Normalize("Ada noted, engines compute\nNeil said, hello\nStop 3", "ada.txt", "Ada")
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	want := []story.Paragraph{
		{Speaker: "Ada", Text: "engines compute"},
		{Speaker: "Host", Text: "Neil said, hello"},
		{Speaker: "Host", Text: "Stop 3"},
	}
	for i, w := range want {
		if doc.Paragraphs[i] != w {
			t.Errorf("paragraph %d = %+v, want %+v", i, doc.Paragraphs[i], w)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Markers: []string{"("}}); err == nil {
		t.Error("New() with invalid marker should fail")
	}
	if _, err := New(Config{Attributions: []Attribution{{Speaker: "Ada"}}}); err == nil {
		t.Error("New() with verbless attribution should fail")
	}
}
