// internal/story/tts/tts.go
package tts

import "errors"

// ErrUnknownHandle is returned when cancelling an utterance the engine never issued.
var ErrUnknownHandle = errors.New("unknown utterance handle")

type Config struct {
	Type     string
	Rate     float64
	Volume   float64
	Language string
	// CachePath is where synthesized audio is kept by engines that cache.
	CachePath string
}

// Utterance is one speech request for a single paragraph.
type Utterance struct {
	Text string
	// VoiceIndex indexes the engine's GetAvailableVoices list, or is negative
	// for the engine default. Voice holds the corresponding name.
	VoiceIndex int
	Voice      string
	Pitch      float64
	Rate       float64
}

// Handle identifies an in-flight utterance.
type Handle uint64

// Completion reports how an utterance ended.
type Completion struct {
	Handle    Handle
	Cancelled bool
	Err       error
}

// Finished reports whether the utterance was spoken to the end.
func (c Completion) Finished() bool {
	return !c.Cancelled && c.Err == nil
}

type CompletionFunc func(Completion)

// Engine is a host speech synthesizer. Speak must not block until the
// utterance ends; completion is reported through OnCompletion, exactly once
// per handle, and never from inside Speak, Cancel or OnCompletion.
type Engine interface {
	Speak(u Utterance) (Handle, error)
	Cancel(h Handle) error
	OnCompletion(h Handle, fn CompletionFunc)
	GetAvailableVoices() ([]string, error)
	Name() string
}

// Closer is implemented by engines holding resources such as API clients.
type Closer interface {
	Close() error
}

// CacheableEngine extends Engine with cache management capabilities
type CacheableEngine interface {
	Engine
	GetCacheStats() (map[string]interface{}, error)
	ClearCache() error
}
