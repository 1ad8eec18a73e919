// Cross-platform eSpeak implementation
package tts

import (
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ESpeakEngine implements TTS using eSpeak/eSpeak-NG, one process per utterance.
type ESpeakEngine struct {
	config     Config
	espeakPath string
	voices     []string
	procs      map[Handle]*espeakProc
	done       *completions
	mutex      sync.Mutex
}

type espeakProc struct {
	cmd       *exec.Cmd
	cancelled bool
}

// newESpeakEngine creates a new eSpeak TTS engine
func newESpeakEngine(config Config) (*ESpeakEngine, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}

	engine := &ESpeakEngine{
		config:     config,
		espeakPath: espeakPath,
		procs:      make(map[Handle]*espeakProc),
		done:       newCompletions(),
	}

	if err := engine.testInstallation(); err != nil {
		return nil, fmt.Errorf("eSpeak test failed: %w", err)
	}

	return engine, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakEngine) testInstallation() error {
	return exec.Command(e.espeakPath, "--version").Run()
}

func (e *ESpeakEngine) Name() string { return EngineTypeESpeak.String() }

// espeakArgs maps an utterance onto eSpeak flags. Rate 1.0 is 175 wpm,
// pitch 1.0 is eSpeak's default of 50 on its 0-99 scale.
func espeakArgs(u Utterance, volume float64) []string {
	args := []string{}

	if u.Voice != "" && u.Voice != "default" {
		args = append(args, "-v", u.Voice)
	}

	rate := u.Rate
	if rate <= 0 {
		rate = 1.0
	}
	args = append(args, "-s", strconv.Itoa(int(math.Round(175*rate))))

	pitch := 50.0
	if u.Pitch > 0 {
		pitch = 50 * u.Pitch
	}
	if pitch > 99 {
		pitch = 99
	}
	args = append(args, "-p", strconv.Itoa(int(math.Round(pitch))))

	if volume <= 0 {
		volume = 1.0
	}
	args = append(args, "-a", strconv.Itoa(int(math.Round(100*volume))))

	// "--" keeps text starting with a dash from being read as a flag.
	return append(args, "--", u.Text)
}

func (e *ESpeakEngine) Speak(u Utterance) (Handle, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	cmd := exec.Command(e.espeakPath, espeakArgs(u, e.config.Volume)...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start eSpeak: %w", err)
	}

	h := e.done.issue()
	proc := &espeakProc{cmd: cmd}
	e.procs[h] = proc

	go func() {
		err := cmd.Wait()

		e.mutex.Lock()
		cancelled := proc.cancelled
		delete(e.procs, h)
		e.mutex.Unlock()

		res := Completion{Handle: h, Cancelled: cancelled}
		if err != nil && !cancelled {
			res.Err = fmt.Errorf("eSpeak exited: %w", err)
		}
		e.done.complete(res)
	}()

	return h, nil
}

// Cancel kills the process speaking h. The waiting goroutine reports it as cancelled.
func (e *ESpeakEngine) Cancel(h Handle) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	proc, ok := e.procs[h]
	if !ok {
		return ErrUnknownHandle
	}
	proc.cancelled = true
	if proc.cmd.Process != nil {
		if err := proc.cmd.Process.Kill(); err != nil {
			logrus.WithError(err).WithField("handle", h).Warn("failed to kill eSpeak")
			return err
		}
	}
	return nil
}

func (e *ESpeakEngine) OnCompletion(h Handle, fn CompletionFunc) {
	e.done.register(h, fn)
}

// GetAvailableVoices lists eSpeak voices once and caches the result.
func (e *ESpeakEngine) GetAvailableVoices() ([]string, error) {
	e.mutex.Lock()
	if e.voices != nil {
		defer e.mutex.Unlock()
		return append([]string(nil), e.voices...), nil
	}
	e.mutex.Unlock()

	output, err := exec.Command(e.espeakPath, "--voices").Output()
	if err != nil {
		return nil, err
	}
	voices := parseESpeakVoices(string(output))

	e.mutex.Lock()
	e.voices = voices
	e.mutex.Unlock()
	return append([]string(nil), voices...), nil
}

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
