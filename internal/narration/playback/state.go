package playback

import "bigpicture/internal/domain/story"

// State is the playback state of a controller.
type State int

const (
	// StateIdle means playback has never started for the loaded document.
	StateIdle State = iota
	// StatePlaying means an utterance is in flight.
	StatePlaying
	// StatePaused means playback was interrupted and will repeat the current paragraph.
	StatePaused
	// StateStopped means playback finished or was cancelled.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the controller.
type Status struct {
	State      State
	Cursor     int
	Total      int
	Generation uint64
	LastError  error
}

// Exhausted reports whether every paragraph was spoken.
func (s Status) Exhausted() bool {
	return s.Total > 0 && s.Cursor >= s.Total
}

// EventKind distinguishes observer notifications.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventParagraphStarted
	EventFinished
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state-changed"
	case EventParagraphStarted:
		return "paragraph-started"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after each transition.
type Event struct {
	Kind      EventKind
	State     State
	Cursor    int
	Paragraph story.Paragraph
	Voice     string
	Slot      int
	Err       error
}

// Observer receives controller events. It may call back into the controller.
type Observer func(Event)
