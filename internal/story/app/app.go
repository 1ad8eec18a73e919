package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	"bigpicture/internal/cli/scheme/colours"
	"bigpicture/internal/config"
	"bigpicture/internal/domain/mindmap"
	"bigpicture/internal/narration/normalize"
	"bigpicture/internal/narration/playback"
	"bigpicture/internal/narration/voice"
	"bigpicture/internal/store"
	"bigpicture/internal/story/tts"
)

// wrapWidth is the console width used for spoken paragraphs.
const wrapWidth = 72

// App is the big picture application: the stores, the speech engine and the
// playback controller wired from one configuration.
type App struct {
	cfg        config.Config
	normalizer *normalize.Normalizer

	Documents *store.DocumentStore
	Trees     *store.TreeStore
	Tts       tts.Engine
	Voices    *voice.Registry
	Player    *playback.Controller

	out io.Writer
	in  io.Reader

	ctx    context.Context
	Cancel context.CancelFunc
}

// New builds the application with the engine selected by cfg.
func New(cfg config.Config) (*App, error) {
	engine, err := tts.NewEngine(cfg.Engine())
	if err != nil {
		return nil, fmt.Errorf("failed to create tts engine: %w", err)
	}
	return NewWithEngine(cfg, engine)
}

// NewOffline builds the application with a silent engine, for commands that
// never speak.
func NewOffline(cfg config.Config) (*App, error) {
	return NewWithEngine(cfg, tts.NewMockTTSEngine(cfg.Engine()))
}

// NewWithEngine builds the application around an existing engine.
func NewWithEngine(cfg config.Config, engine tts.Engine) (*App, error) {
	n, err := normalize.New(cfg.Normalizer())
	if err != nil {
		return nil, fmt.Errorf("invalid narration settings: %w", err)
	}

	registry := voice.NewRegistry(cfg.Voice.Pitches)
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:        cfg,
		normalizer: n,
		Documents:  store.NewDocumentStore(cfg.Store.Root),
		Trees:      store.NewTreeStore(cfg.Store.Root),
		Tts:        engine,
		Voices:     registry,
		Player:     playback.New(engine, registry, playback.WithRate(cfg.TTS.Rate)),
		out:        os.Stdout,
		in:         os.Stdin,
		ctx:        ctx,
		Cancel:     cancel,
	}, nil
}

// SetIO redirects console input and output.
func (a *App) SetIO(in io.Reader, out io.Writer) {
	a.in = in
	a.out = out
}

// Close stops playback and releases engine resources.
func (a *App) Close() {
	a.Cancel()
	a.Player.Stop()
	if c, ok := a.Tts.(tts.Closer); ok {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close tts engine")
		}
	}
}

func (a *App) ShowWelcome() {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "🌟 CBSE Commerce Big Picture 🌟")
	fmt.Fprintln(a.out)
	colours.Info.Fprintln(a.out, "📚 Available commands:")
	fmt.Fprintln(a.out, "  • bigpicture import-node \"Node Name\" file.txt - Turn a text file into a narrated node")
	fmt.Fprintln(a.out, "  • bigpicture tree                          - Show the content tree")
	fmt.Fprintln(a.out, "  • bigpicture play <node>                   - Listen to a node")
	fmt.Fprintln(a.out, "  • bigpicture voices                        - List engine voices")
	fmt.Fprintln(a.out, "  • bigpicture settings                      - Show the effective settings")
	fmt.Fprintln(a.out)
}

// ImportNode normalizes a text file into a narration document, stores it and
// links it into the tree under the slug of name.
func (a *App) ImportNode(name, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	doc, err := a.normalizer.Normalize(string(raw), filepath.Base(path), name)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	id := mindmap.Slug(name)
	ref := store.Ref(id)
	// Catalog branches cannot take content; refuse before anything is written.
	if _, err := a.Trees.Tree().UpsertNode(id, name, ref); err != nil {
		return fmt.Errorf("cannot import %q: %w", name, err)
	}

	saved, err := a.Documents.Save(id, doc)
	if err != nil {
		return err
	}
	colours.Success.Fprintln(a.out, "Saved:", saved)

	if err := a.Trees.UpsertNode(id, name, ref); err != nil {
		return err
	}
	colours.Success.Fprintln(a.out, "Integrated node with mindmap:", id)

	logrus.WithFields(logrus.Fields{
		"node":       id,
		"paragraphs": doc.Len(),
		"length":     doc.Metadata.LengthClass,
	}).Debug("node imported")
	return nil
}

// ShowTree prints the content tree. With watch set it reprints whenever the
// tree file changes, until the app is cancelled.
func (a *App) ShowTree(watch bool) error {
	RenderTree(a.out, a.Trees.Tree())
	if !watch {
		return nil
	}

	colours.Info.Fprintln(a.out, "👀 Watching", a.Trees.Path(), "(Ctrl+C to stop)")
	return a.Trees.Watch(a.ctx, func(t *mindmap.Tree) {
		fmt.Fprintln(a.out)
		colours.Warning.Fprintln(a.out, "🔄 Tree updated")
		RenderTree(a.out, t)
	})
}

// RenderTree writes an indented outline of the tree.
func RenderTree(w io.Writer, tree *mindmap.Tree) {
	tree.Walk(func(n *mindmap.Node, level int) bool {
		indent := strings.Repeat("  ", level)
		marker := "•"
		switch {
		case level == 1 && !n.IsLeaf():
			marker = "▸"
		case n.Narrated():
			marker = "🎧"
		}
		fmt.Fprint(w, indent, marker, " ")
		colours.Level(level).Fprint(w, n.Name)
		if n.Narrated() {
			fmt.Fprintf(w, " [%s]", n.ID)
		}
		fmt.Fprintln(w)
		return true
	})
}

// FindNode resolves a query to a narrated leaf, by exact id first and then by
// fuzzy match on leaf names.
func (a *App) FindNode(query string) (*mindmap.Node, error) {
	tree := a.Trees.Tree()
	if n := tree.Find(query); n != nil {
		if !n.Narrated() {
			return nil, fmt.Errorf("%q has no narration", n.Name)
		}
		return n, nil
	}

	var leaves []*mindmap.Node
	var names []string
	for _, n := range tree.Leaves() {
		if n.Narrated() {
			leaves = append(leaves, n)
			names = append(names, n.Name)
		}
	}
	matches := fuzzy.Find(query, names)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no node matches %q", query)
	}
	return leaves[matches[0].Index], nil
}

// PlayNode narrates a node and runs the console controls until the
// narration finishes or the user quits.
func (a *App) PlayNode(query string) error {
	node, err := a.FindNode(query)
	if err != nil {
		return err
	}

	doc, err := a.Documents.Load(node.ContentRef)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("narration for %q is missing: %w", node.Name, err)
	case errors.Is(err, store.ErrParseError):
		return fmt.Errorf("narration for %q is unreadable: %w", node.Name, err)
	case err != nil:
		return err
	}

	if err := a.Player.Load(doc); err != nil {
		return err
	}

	fmt.Fprintln(a.out)
	colours.Title.Fprintf(a.out, "📖 %s\n", doc.Title)
	fmt.Fprintf(a.out, "🗂️  %d paragraphs (%s)\n", doc.Len(), doc.Metadata.LengthClass)
	fmt.Fprintln(a.out)

	finished := make(chan struct{}, 1)
	a.Player.Subscribe(a.narrationObserver(finished))

	if err := a.Player.Play(); err != nil {
		return err
	}
	return a.waitForUserInput(finished)
}

func (a *App) narrationObserver(finished chan<- struct{}) playback.Observer {
	return func(ev playback.Event) {
		switch ev.Kind {
		case playback.EventParagraphStarted:
			colours.Speaker(ev.Slot).Fprintf(a.out, "%s:\n", ev.Paragraph.Speaker)
			fmt.Fprintln(a.out, wordwrap.String(ev.Paragraph.Text, wrapWidth))
			fmt.Fprintln(a.out)
		case playback.EventFinished:
			colours.Success.Fprintln(a.out, "✅ Narration finished!")
			select {
			case finished <- struct{}{}:
			default:
			}
		case playback.EventError:
			colours.Error.Fprintf(a.out, "❌ TTS Error: %v\n", ev.Err)
		}
	}
}

func (a *App) waitForUserInput(finished <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	colours.Prompt.Fprintln(a.out, "⏯️  p pause, r resume, s stop, a replay, q quit")
	for {
		select {
		case <-a.ctx.Done():
			a.Player.Stop()
			return nil
		case <-finished:
			return nil
		case line, ok := <-lines:
			if !ok {
				// Input closed; let the narration run out.
				select {
				case <-finished:
				case <-a.ctx.Done():
					a.Player.Stop()
				}
				return nil
			}
			if quit, err := a.handleCommand(strings.TrimSpace(strings.ToLower(line))); quit || err != nil {
				return err
			}
		}
	}
}

func (a *App) handleCommand(input string) (bool, error) {
	switch input {
	case "p", "pause":
		a.Player.Pause()
		colours.Warning.Fprintln(a.out, "⏸️  Paused")
	case "r", "resume":
		if err := a.Player.Resume(); err != nil {
			return false, err
		}
		colours.Success.Fprintln(a.out, "▶️  Resumed")
	case "s", "stop":
		a.Player.Stop()
		colours.Warning.Fprintln(a.out, "⏹️  Stopped")
	case "a", "again", "replay":
		a.Player.Stop()
		if err := a.Player.Play(); err != nil {
			return false, err
		}
	case "q", "quit":
		a.Player.Stop()
		return true, nil
	case "":
		colours.Info.Fprintln(a.out, "ℹ️ ", describeStatus(a.Player.Status()))
	default:
		colours.Info.Fprintln(a.out, "ℹ️  Use p, r, s, a or q")
	}
	return false, nil
}

func describeStatus(st playback.Status) string {
	if st.Exhausted() {
		return fmt.Sprintf("%s, all %d paragraphs spoken", st.State, st.Total)
	}
	return fmt.Sprintf("%s, paragraph %d of %d", st.State, st.Cursor+1, st.Total)
}

// ListVoices prints the voices the engine offers.
func (a *App) ListVoices() error {
	voices, err := a.Tts.GetAvailableVoices()
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	fmt.Fprintln(a.out)
	colours.Title.Fprintf(a.out, "🎤 Voices (%s engine)\n", a.Tts.Name())
	fmt.Fprintln(a.out)
	if len(voices) == 0 {
		colours.Warning.Fprintln(a.out, "No voices available. Narration will use the engine default.")
		return nil
	}
	for i, v := range voices {
		fmt.Fprintf(a.out, "  %3d. %s\n", i, v)
	}
	return nil
}

func engineList(engines []tts.EngineType) string {
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}

// ClearCache removes synthesized audio kept by the engine. Engines without a
// cache report that there is nothing to clear.
func (a *App) ClearCache() error {
	c, ok := a.Tts.(tts.CacheableEngine)
	if !ok {
		colours.Info.Fprintf(a.out, "ℹ️  The %s engine keeps no audio cache\n", a.Tts.Name())
		return nil
	}
	if err := c.ClearCache(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	colours.Success.Fprintln(a.out, "🧹 Audio cache cleared")
	return nil
}

// ConfigureSettings prints the effective settings.
func (a *App) ConfigureSettings() {
	fmt.Fprintln(a.out)
	colours.Title.Fprintln(a.out, "⚙️ Settings ⚙️")
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🎤 Voice Settings:")
	fmt.Fprintf(a.out, "  • Engine: %s (%s requested)\n", a.Tts.Name(), a.cfg.TTS.Type)
	fmt.Fprintf(a.out, "  • Engines on this machine: %s\n", engineList(tts.GetAvailableEngines()))
	fmt.Fprintf(a.out, "  • Rate: %.1fx\n", a.cfg.TTS.Rate)
	fmt.Fprintf(a.out, "  • Volume: %.0f%%\n", a.cfg.TTS.Volume*100)
	fmt.Fprintf(a.out, "  • Language: %s\n", a.cfg.TTS.Language)
	fmt.Fprintf(a.out, "  • Pitches by slot: %v\n", a.cfg.Voice.Pitches)
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "🗣️ Narration:")
	fmt.Fprintf(a.out, "  • Default speaker: %s\n", a.cfg.Narration.DefaultSpeaker)
	for _, s := range a.cfg.Narration.Speakers {
		fmt.Fprintf(a.out, "  • %s: %s\n", s.Name, strings.Join(s.Verbs, ", "))
	}
	fmt.Fprintf(a.out, "  • Narrator markers: %s\n", strings.Join(a.cfg.Narration.Markers, " "))
	fmt.Fprintln(a.out)

	colours.Prompt.Fprintln(a.out, "📁 Storage:")
	fmt.Fprintf(a.out, "  • Root: %s\n", a.cfg.Store.Root)
	fmt.Fprintf(a.out, "  • Tree: %s\n", a.Trees.Path())

	if c, ok := a.Tts.(tts.CacheableEngine); ok {
		stats, err := c.GetCacheStats()
		if err != nil {
			colours.Warning.Fprintf(a.out, "  • Cache: unavailable (%v)\n", err)
			return
		}
		fmt.Fprintf(a.out, "  • Cache: %v files, %.2f MB in %v\n",
			stats["cached_files"], stats["total_size_mb"], stats["cache_directory"])
	}
}
