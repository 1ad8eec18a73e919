// Package normalize turns raw authored text into a speaker-tagged
// narration document.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"bigpicture/internal/domain/story"
)

// ErrEmptyInput is returned when the raw text has no non-blank lines.
var ErrEmptyInput = errors.New("no usable lines in input")

// Attribution names a speaker and the reporting verbs that attribute a line to them.
type Attribution struct {
	Speaker string
	Verbs   []string
}

type Config struct {
	DefaultSpeaker string
	Attributions   []Attribution
	// Markers are regular expressions for scene or stop markers that the
	// default speaker reads out verbatim.
	Markers []string
}

// DefaultConfig is the attribution table used by the importer out of the box.
func DefaultConfig() Config {
	return Config{
		DefaultSpeaker: story.DefaultSpeaker,
		Attributions: []Attribution{
			{Speaker: "Neil", Verbs: []string{"said", "declared", "affirmed", "continued", "added", "confirmed", "smiled"}},
			{Speaker: "Kanishq", Verbs: []string{"nodded", "grinned", "remembered", "clarified", "interjected", "prompted"}},
			{Speaker: "Krish", Verbs: []string{"said", "added", "joined"}},
		},
		Markers: []string{`(?i)\bStop \d`},
	}
}

var (
	newline     = regexp.MustCompile(`\r\n|\r|\n`)
	explicitTag = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 ]*):\s*(.*)$`)
)

const quotes = "\"“”"

type attribution struct {
	speaker string
	pattern *regexp.Regexp
}

// Normalizer applies the speaker rules in a fixed priority order.
type Normalizer struct {
	defaultSpeaker string
	attributions   []attribution
	markers        []*regexp.Regexp
}

// New compiles cfg into a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	n := &Normalizer{defaultSpeaker: cfg.DefaultSpeaker}
	if n.defaultSpeaker == "" {
		n.defaultSpeaker = story.DefaultSpeaker
	}

	for _, a := range cfg.Attributions {
		if strings.TrimSpace(a.Speaker) == "" || len(a.Verbs) == 0 {
			return nil, fmt.Errorf("attribution %q needs a speaker and at least one verb", a.Speaker)
		}
		verbs := make([]string, len(a.Verbs))
		for i, v := range a.Verbs {
			verbs[i] = regexp.QuoteMeta(strings.TrimSpace(v))
		}
		expr := `(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(a.Speaker)) + `\s+(?:` + strings.Join(verbs, "|") + `)\b[,:]?`
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile attribution for %q: %w", a.Speaker, err)
		}
		n.attributions = append(n.attributions, attribution{speaker: strings.TrimSpace(a.Speaker), pattern: re})
	}

	for _, m := range cfg.Markers {
		re, err := regexp.Compile(m)
		if err != nil {
			return nil, fmt.Errorf("compile marker %q: %w", m, err)
		}
		n.markers = append(n.markers, re)
	}

	return n, nil
}

var defaultNormalizer = func() *Normalizer {
	n, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return n
}()

// Normalize converts rawText with the default attribution table.
func Normalize(rawText, sourceName, title string) (*story.Document, error) {
	return defaultNormalizer.Normalize(rawText, sourceName, title)
}

// Normalize splits rawText into lines and attributes each non-blank line
// to a speaker.
func (n *Normalizer) Normalize(rawText, sourceName, title string) (*story.Document, error) {
	var paragraphs []story.Paragraph
	for _, line := range newline.Split(rawText, -1) {
		if p, ok := n.Line(line); ok {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) == 0 {
		return nil, ErrEmptyInput
	}

	return &story.Document{
		Title: title,
		Metadata: story.Metadata{
			SourceName:  sourceName,
			Kind:        story.Kind,
			LengthClass: story.ClassifyLength(len(paragraphs)),
		},
		DefaultSpeaker: n.defaultSpeaker,
		Paragraphs:     paragraphs,
	}, nil
}

// Line attributes a single line. It reports false for lines with nothing to
// speak once control characters and quotes are removed.
func (n *Normalizer) Line(line string) (story.Paragraph, bool) {
	line = strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, line))
	if strings.Trim(line, quotes+" ") == "" {
		return story.Paragraph{}, false
	}

	rules := []func(string) (story.Paragraph, bool){
		n.explicit,
		n.attributed,
		n.marker,
		n.quoted,
	}
	for _, rule := range rules {
		if p, ok := rule(line); ok {
			return p, true
		}
	}
	return story.Paragraph{Speaker: n.defaultSpeaker, Text: line}, true
}

func (n *Normalizer) explicit(line string) (story.Paragraph, bool) {
	m := explicitTag.FindStringSubmatch(line)
	if m == nil {
		return story.Paragraph{}, false
	}
	text := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), quotes))
	if text == "" {
		return story.Paragraph{}, false
	}
	return story.Paragraph{Speaker: strings.TrimSpace(m[1]), Text: text}, true
}

func (n *Normalizer) attributed(line string) (story.Paragraph, bool) {
	for _, a := range n.attributions {
		loc := a.pattern.FindStringIndex(line)
		if loc == nil {
			continue
		}
		rest := strings.TrimSpace(line[:loc[0]] + line[loc[1]:])
		rest = strings.TrimLeft(rest, ",:; ")
		rest = strings.TrimSpace(stripQuotes(rest))
		if rest == "" {
			return story.Paragraph{}, false
		}
		return story.Paragraph{Speaker: a.speaker, Text: rest}, true
	}
	return story.Paragraph{}, false
}

func (n *Normalizer) marker(line string) (story.Paragraph, bool) {
	for _, re := range n.markers {
		if re.MatchString(line) {
			return story.Paragraph{Speaker: n.defaultSpeaker, Text: line}, true
		}
	}
	return story.Paragraph{}, false
}

func (n *Normalizer) quoted(line string) (story.Paragraph, bool) {
	if !startsWithQuote(line) {
		return story.Paragraph{}, false
	}
	text := strings.TrimSpace(stripQuotes(line))
	if text == "" {
		return story.Paragraph{}, false
	}
	return story.Paragraph{Speaker: n.defaultSpeaker, Text: text}, true
}

func startsWithQuote(s string) bool {
	for _, q := range quotes {
		if strings.HasPrefix(s, string(q)) {
			return true
		}
	}
	return false
}

// stripQuotes removes at most one quote character from each end of s.
func stripQuotes(s string) string {
	for _, q := range quotes {
		if strings.HasPrefix(s, string(q)) {
			s = strings.TrimPrefix(s, string(q))
			break
		}
	}
	for _, q := range quotes {
		if strings.HasSuffix(s, string(q)) {
			s = strings.TrimSuffix(s, string(q))
			break
		}
	}
	return s
}
