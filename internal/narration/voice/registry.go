// Package voice assigns each speaker of a document a stable voice slot.
package voice

import (
	"strings"
	"sync"
)

// Unresolved means the host should use its own default voice.
const Unresolved = -1

// DefaultPitch is used for slots beyond the pitch table.
const DefaultPitch = 1.0

// DefaultPitches gives the first three slots perceptibly different voices.
var DefaultPitches = []float64{1.0, 1.2, 0.9}

// Profile is the voice a speaker is rendered with.
type Profile struct {
	Slot       int
	VoiceIndex int
	Voice      string
	Pitch      float64
}

// Resolved reports whether a host voice was selected.
func (p Profile) Resolved() bool {
	return p.VoiceIndex != Unresolved
}

// Registry maps speaker names onto slots in first-seen order.
type Registry struct {
	pitches []float64
	slots   map[string]int
	order   []string
	mu      sync.Mutex
}

// NewRegistry creates a registry. A nil or empty pitch table uses DefaultPitches.
func NewRegistry(pitches []float64) *Registry {
	if len(pitches) == 0 {
		pitches = DefaultPitches
	}
	table := make([]float64, 0, len(pitches))
	for _, p := range pitches {
		if p <= 0 {
			p = DefaultPitch
		}
		table = append(table, p)
	}
	return &Registry{
		pitches: table,
		slots:   make(map[string]int),
	}
}

// Reset forgets every speaker and seeds the given ones, in order, starting at slot 0.
func (r *Registry) Reset(seed ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.slots = make(map[string]int)
	r.order = r.order[:0]
	for _, s := range seed {
		r.slotLocked(s)
	}
}

// Resolve returns the profile for speaker against a snapshot of the host's voices.
// The speaker is assigned a slot on first sight; later calls reuse it.
func (r *Registry) Resolve(speaker string, voices []string) Profile {
	r.mu.Lock()
	slot := r.slotLocked(speaker)
	r.mu.Unlock()

	p := Profile{
		Slot:       slot,
		VoiceIndex: Unresolved,
		Pitch:      r.pitch(slot),
	}
	if len(voices) > 0 {
		p.VoiceIndex = slot % len(voices)
		p.Voice = voices[p.VoiceIndex]
	}
	return p
}

// Speakers returns the known speakers in slot order.
func (r *Registry) Speakers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) slotLocked(speaker string) int {
	key := strings.TrimSpace(speaker)
	if slot, ok := r.slots[key]; ok {
		return slot
	}
	slot := len(r.order)
	r.slots[key] = slot
	r.order = append(r.order, key)
	return slot
}

func (r *Registry) pitch(slot int) float64 {
	if slot < len(r.pitches) {
		return r.pitches[slot]
	}
	return DefaultPitch
}
