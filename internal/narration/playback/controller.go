// Package playback sequences a narration document through a speech engine,
// one paragraph per utterance.
package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"bigpicture/internal/domain/story"
	"bigpicture/internal/narration/voice"
	"bigpicture/internal/story/tts"
)

// ErrNoDocument is returned by Play when nothing has been loaded.
var ErrNoDocument = errors.New("no document loaded")

// DefaultRate is the neutral speaking rate.
const DefaultRate = 1.0

// Controller owns a single playback session for the loaded document.
//
// Every dispatched utterance is stamped with the generation current at
// dispatch time. Any transition that supersedes it bumps the generation,
// so late completions from the engine are recognised and dropped.
type Controller struct {
	engine tts.Engine
	voices *voice.Registry
	rate   float64
	log    logrus.FieldLogger

	mu         sync.Mutex
	doc        *story.Document
	state      State
	cursor     int
	generation uint64
	active     tts.Handle
	inFlight   bool
	lastErr    error
	observers  []Observer
}

type Option func(*Controller)

// WithRate overrides the speaking rate.
func WithRate(rate float64) Option {
	return func(c *Controller) {
		if rate > 0 {
			c.rate = rate
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// New creates a controller. A nil registry gets the default pitch table.
func New(engine tts.Engine, registry *voice.Registry, opts ...Option) *Controller {
	if registry == nil {
		registry = voice.NewRegistry(nil)
	}
	c := &Controller{
		engine: engine,
		voices: registry,
		rate:   DefaultRate,
		log:    logrus.WithField("component", "playback"),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer for all future events.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Load replaces the document, cancelling any session and returning to Idle.
func (c *Controller) Load(doc *story.Document) error {
	if doc == nil {
		return ErrNoDocument
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.generation++
	c.cancelActiveLocked()
	c.doc = doc
	c.cursor = 0
	c.lastErr = nil
	c.voices.Reset(doc.DefaultSpeaker)
	events := c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.emit(events)
	return nil
}

// Play starts from the first paragraph, or resumes in place when paused.
// Playing again while already playing restarts from the beginning.
func (c *Controller) Play() error {
	c.mu.Lock()
	if c.doc == nil {
		c.mu.Unlock()
		return ErrNoDocument
	}

	if c.state != StatePaused {
		c.cursor = 0
	}
	c.lastErr = nil
	events := c.setStateLocked(StatePlaying)
	more, err := c.dispatchLocked()
	events = append(events, more...)
	c.mu.Unlock()

	c.emit(events)
	return err
}

// Pause interrupts the current paragraph. It does nothing unless playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.cancelActiveLocked()
	events := c.setStateLocked(StatePaused)
	c.mu.Unlock()

	c.emit(events)
}

// Resume repeats the interrupted paragraph in full. It does nothing unless paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		return nil
	}
	events := c.setStateLocked(StatePlaying)
	more, err := c.dispatchLocked()
	events = append(events, more...)
	c.mu.Unlock()

	c.emit(events)
	return err
}

// Stop cancels playback and rewinds. Stopping an idle controller does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.cancelActiveLocked()
	c.cursor = 0
	events := c.setStateLocked(StateStopped)
	c.mu.Unlock()

	c.emit(events)
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:      c.state,
		Cursor:     c.cursor,
		Generation: c.generation,
		LastError:  c.lastErr,
	}
	if c.doc != nil {
		s.Total = c.doc.Len()
	}
	return s
}

// State returns the current state.
func (c *Controller) State() State {
	return c.Status().State
}

// Cursor returns the index of the current paragraph.
func (c *Controller) Cursor() int {
	return c.Status().Cursor
}

// dispatchLocked submits paragraphs[cursor] to the engine.
func (c *Controller) dispatchLocked() ([]Event, error) {
	c.cancelActiveLocked()
	c.generation++
	gen := c.generation

	p := c.doc.Paragraphs[c.cursor]
	profile := c.voices.Resolve(p.Speaker, c.availableVoices())

	h, err := c.engine.Speak(tts.Utterance{
		Text:       p.Text,
		VoiceIndex: profile.VoiceIndex,
		Voice:      profile.Voice,
		Pitch:      profile.Pitch,
		Rate:       c.rate,
	})
	if err != nil {
		err = fmt.Errorf("speak paragraph %d: %w", c.cursor, err)
		c.lastErr = err
		events := c.setStateLocked(StateStopped)
		events = append(events, Event{Kind: EventError, State: c.state, Cursor: c.cursor, Err: err})
		return events, err
	}

	c.active = h
	c.inFlight = true
	c.engine.OnCompletion(h, func(res tts.Completion) {
		c.complete(gen, res)
	})

	c.log.WithFields(logrus.Fields{
		"cursor":     c.cursor,
		"speaker":    p.Speaker,
		"slot":       profile.Slot,
		"voice":      profile.Voice,
		"generation": gen,
	}).Debug("dispatched utterance")

	return []Event{{
		Kind:      EventParagraphStarted,
		State:     c.state,
		Cursor:    c.cursor,
		Paragraph: p,
		Voice:     profile.Voice,
		Slot:      profile.Slot,
	}}, nil
}

func (c *Controller) complete(gen uint64, res tts.Completion) {
	c.mu.Lock()
	if gen != c.generation || c.state != StatePlaying {
		c.log.WithFields(logrus.Fields{
			"generation": gen,
			"current":    c.generation,
			"cancelled":  res.Cancelled,
		}).Debug("discarding stale completion")
		c.mu.Unlock()
		return
	}
	c.inFlight = false

	var events []Event
	switch {
	case res.Cancelled:
		// Cancelled by the host rather than by us: hold the paragraph so
		// Resume can repeat it.
		c.log.WithField("cursor", c.cursor).Info("utterance interrupted by host")
		events = c.setStateLocked(StatePaused)

	case res.Err != nil:
		c.lastErr = res.Err
		c.log.WithError(res.Err).WithField("cursor", c.cursor).Warn("utterance failed")
		events = c.setStateLocked(StateStopped)
		events = append(events, Event{Kind: EventError, State: c.state, Cursor: c.cursor, Err: res.Err})

	case c.cursor+1 < c.doc.Len():
		c.cursor++
		// A failed dispatch is reported through the returned events.
		events, _ = c.dispatchLocked()

	default:
		c.cursor = c.doc.Len()
		events = c.setStateLocked(StateStopped)
		events = append(events, Event{Kind: EventFinished, State: c.state, Cursor: c.cursor})
	}
	c.mu.Unlock()

	c.emit(events)
}

// availableVoices treats an engine error as "not initialised yet".
func (c *Controller) availableVoices() []string {
	voices, err := c.engine.GetAvailableVoices()
	if err != nil {
		c.log.WithError(err).Debug("voice list unavailable, using host default")
		return nil
	}
	return voices
}

func (c *Controller) cancelActiveLocked() {
	if !c.inFlight {
		return
	}
	if err := c.engine.Cancel(c.active); err != nil {
		c.log.WithError(err).WithField("handle", c.active).Debug("cancel failed")
	}
	c.inFlight = false
}

func (c *Controller) setStateLocked(s State) []Event {
	if c.state == s {
		return nil
	}
	c.state = s
	return []Event{{Kind: EventStateChanged, State: s, Cursor: c.cursor}}
}

func (c *Controller) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, e := range events {
		for _, o := range observers {
			o(e)
		}
	}
}
