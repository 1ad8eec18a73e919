package tts

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestCompletionDeliveredOnceAfterRegister(t *testing.T) {
	done := newCompletions()
	h := done.issue()

	var calls int
	done.register(h, func(c Completion) { calls++ })
	done.complete(Completion{Handle: h})
	done.complete(Completion{Handle: h, Cancelled: true})

	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestCompletionBeforeRegister(t *testing.T) {
	done := newCompletions()
	h := done.issue()
	done.complete(Completion{Handle: h, Cancelled: true})

	got := make(chan Completion, 1)
	done.register(h, func(c Completion) { got <- c })

	select {
	case c := <-got:
		if !c.Cancelled || c.Finished() {
			t.Errorf("completion = %+v, want cancelled", c)
		}
	case <-time.After(time.Second):
		t.Fatal("stored completion was never delivered")
	}
}

func TestMockEngineRecordsUtterances(t *testing.T) {
	m := NewMockTTSEngine(Config{})
	m.SetVoices("a", "b")

	h, err := m.Speak(Utterance{Text: "hello", Voice: "b", VoiceIndex: 1, Pitch: 1.2, Rate: 1})
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if h != m.LastHandle() {
		t.Errorf("LastHandle() = %d, want %d", m.LastHandle(), h)
	}

	var got Completion
	m.OnCompletion(h, func(c Completion) { got = c })
	m.Finish(h)
	if !got.Finished() || got.Handle != h {
		t.Errorf("completion = %+v", got)
	}

	if err := m.Cancel(h + 100); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Cancel(unknown) error = %v, want ErrUnknownHandle", err)
	}
	if len(m.Spoken()) != 1 || m.Spoken()[0].Voice != "b" {
		t.Errorf("Spoken() = %+v", m.Spoken())
	}
}

func TestMockEngineAutoCompleteAndCancel(t *testing.T) {
	m := NewMockTTSEngine(Config{})
	m.AutoComplete(time.Millisecond)

	var wg sync.WaitGroup
	results := make([]Completion, 2)

	wg.Add(2)
	h1, _ := m.Speak(Utterance{Text: "one two"})
	m.OnCompletion(h1, func(c Completion) { results[0] = c; wg.Done() })

	m.AutoComplete(time.Hour)
	h2, _ := m.Speak(Utterance{Text: "three"})
	m.OnCompletion(h2, func(c Completion) { results[1] = c; wg.Done() })
	if err := m.Cancel(h2); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	wg.Wait()
	if !results[0].Finished() {
		t.Errorf("first utterance = %+v, want finished", results[0])
	}
	if !results[1].Cancelled {
		t.Errorf("second utterance = %+v, want cancelled", results[1])
	}
	if !m.Cancelled(h2) {
		t.Error("Cancelled(h2) = false")
	}
}

func TestMockEngineFailSpeak(t *testing.T) {
	m := NewMockTTSEngine(Config{})
	boom := errors.New("boom")
	m.FailSpeak(boom)
	if _, err := m.Speak(Utterance{Text: "x"}); !errors.Is(err, boom) {
		t.Errorf("Speak() error = %v, want boom", err)
	}
}

func TestEspeakArgs(t *testing.T) {
	got := espeakArgs(Utterance{Text: "-hi", Voice: "en-gb", Pitch: 1.2, Rate: 1.0}, 0.8)
	want := []string{"-v", "en-gb", "-s", "175", "-p", "60", "-a", "80", "--", "-hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("espeakArgs() = %v, want %v", got, want)
	}

	got = espeakArgs(Utterance{Text: "x", Voice: "default", Pitch: 3}, 0)
	want = []string{"-s", "175", "-p", "99", "-a", "100", "--", "x"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("espeakArgs() = %v, want %v", got, want)
	}
}

func TestParseESpeakVoices(t *testing.T) {
	output := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en           (en 2)

`
	got := parseESpeakVoices(output)
	want := []string{"Afrikaans", "English_(Great_Britain)"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseESpeakVoices() = %v, want %v", got, want)
	}
}

func TestSplitIntoChunks(t *testing.T) {
	chunks := splitIntoChunks("héllo world", 5)
	want := []string{"héllo", " worl", "d"}
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("splitIntoChunks() = %q, want %q", chunks, want)
	}
}

func TestNewEngineRejectsUnknownType(t *testing.T) {
	if _, err := NewEngine(Config{Type: "vocoder"}); err == nil {
		t.Error("NewEngine(vocoder) should fail")
	}
	e, err := NewEngine(Config{Type: EngineTypeMock.String()})
	if err != nil || e.Name() != "mock" {
		t.Errorf("NewEngine(mock) = %v, %v", e, err)
	}
}

func TestGetAvailableEnginesAlwaysOffersMock(t *testing.T) {
	engines := GetAvailableEngines()
	if len(engines) == 0 || engines[0] != EngineTypeMock {
		t.Errorf("GetAvailableEngines() = %v, want mock first", engines)
	}
}
