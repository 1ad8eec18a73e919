package tts

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MockTTSEngine records utterances instead of speaking them. Completions are
// driven by Finish/Fail, or by a simulated reading time when AutoComplete is set.
type MockTTSEngine struct {
	config    Config
	voices    []string
	perWord   time.Duration
	speakErr  error
	spoken    []Utterance
	handles   []Handle
	cancelled map[Handle]bool
	timers    map[Handle]*time.Timer
	done      *completions
	mu        sync.Mutex
}

func NewMockTTSEngine(c Config) *MockTTSEngine {
	return &MockTTSEngine{
		config:    c,
		voices:    []string{"mock-voice"},
		cancelled: make(map[Handle]bool),
		timers:    make(map[Handle]*time.Timer),
		done:      newCompletions(),
	}
}

func (m *MockTTSEngine) Name() string { return EngineTypeMock.String() }

// SetVoices replaces the voice list. An empty list simulates an engine whose
// voices have not loaded yet.
func (m *MockTTSEngine) SetVoices(voices ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = voices
}

// AutoComplete makes every utterance finish after perWord per word of text.
func (m *MockTTSEngine) AutoComplete(perWord time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perWord = perWord
}

// FailSpeak makes subsequent Speak calls return err. Pass nil to clear.
func (m *MockTTSEngine) FailSpeak(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakErr = err
}

func (m *MockTTSEngine) GetAvailableVoices() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.voices...), nil
}

func (m *MockTTSEngine) Speak(u Utterance) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.speakErr != nil {
		return 0, m.speakErr
	}

	h := m.done.issue()
	m.spoken = append(m.spoken, u)
	m.handles = append(m.handles, h)

	logrus.WithFields(logrus.Fields{
		"handle": h,
		"voice":  u.Voice,
		"pitch":  u.Pitch,
	}).Debug("mock engine speaking")

	if m.perWord > 0 {
		words := len(strings.Fields(u.Text))
		m.timers[h] = time.AfterFunc(time.Duration(words+1)*m.perWord, func() {
			m.mu.Lock()
			delete(m.timers, h)
			m.mu.Unlock()
			m.done.complete(Completion{Handle: h})
		})
	}
	return h, nil
}

// Cancel records the cancellation. Without AutoComplete no completion is
// reported, so tests can deliver a late one with Finish.
func (m *MockTTSEngine) Cancel(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.issued(h) {
		return ErrUnknownHandle
	}
	m.cancelled[h] = true
	if t, ok := m.timers[h]; ok {
		t.Stop()
		delete(m.timers, h)
		go m.done.complete(Completion{Handle: h, Cancelled: true})
	}
	return nil
}

func (m *MockTTSEngine) OnCompletion(h Handle, fn CompletionFunc) {
	m.done.register(h, fn)
}

// Finish reports h as spoken to the end, on the calling goroutine.
func (m *MockTTSEngine) Finish(h Handle) {
	m.done.complete(Completion{Handle: h})
}

// Interrupt reports h as cancelled by the host, as when another
// application takes over the audio device.
func (m *MockTTSEngine) Interrupt(h Handle) {
	m.done.complete(Completion{Handle: h, Cancelled: true})
}

// Fail reports h as ended by an engine error.
func (m *MockTTSEngine) Fail(h Handle, err error) {
	m.done.complete(Completion{Handle: h, Err: err})
}

// Spoken returns every utterance submitted so far.
func (m *MockTTSEngine) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

// LastHandle returns the most recently issued handle, or 0.
func (m *MockTTSEngine) LastHandle() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return 0
	}
	return m.handles[len(m.handles)-1]
}

// Cancelled reports whether Cancel was called for h.
func (m *MockTTSEngine) Cancelled(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[h]
}

func (m *MockTTSEngine) issued(h Handle) bool {
	for _, x := range m.handles {
		if x == h {
			return true
		}
	}
	return false
}
