package tts

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeAuto          EngineType = "auto" // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// mockReadingPace paces the console mock at roughly 150 words per minute.
const mockReadingPace = 400 * time.Millisecond

// NewEngine creates a new TTS engine based on the provided config
func NewEngine(config Config) (Engine, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		return newBestEngine(config), nil
	}

	switch config.Type {
	case EngineTypeMock.String():
		m := NewMockTTSEngine(config)
		m.AutoComplete(mockReadingPace)
		return m, nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicTTSEngine(config)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// newBestEngine tries Google, then eSpeak, and settles for the mock engine.
func newBestEngine(config Config) Engine {
	if hasGoogleCredentials() {
		engine, err := newGoogleClassicTTSEngine(config)
		if err == nil {
			return engine
		}
		logrus.WithError(err).Warn("google tts unavailable, falling back")
	}

	engine, err := newESpeakEngine(config)
	if err == nil {
		return engine
	}
	logrus.WithError(err).Warn("espeak unavailable, using mock engine")

	m := NewMockTTSEngine(config)
	m.AutoComplete(mockReadingPace)
	return m
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines() []EngineType {
	engines := []EngineType{EngineTypeMock}

	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}
	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
