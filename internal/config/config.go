package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"bigpicture/internal/domain/story"
	"bigpicture/internal/narration/normalize"
	"bigpicture/internal/narration/voice"
	"bigpicture/internal/story/tts"
)

type Speaker struct {
	Name  string   `mapstructure:"name"`
	Verbs []string `mapstructure:"verbs"`
}

type Config struct {
	Store struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"store"`

	TTS struct {
		Type      string  `mapstructure:"type"`
		Rate      float64 `mapstructure:"rate"`
		Volume    float64 `mapstructure:"volume"`
		Language  string  `mapstructure:"language"`
		CachePath string  `mapstructure:"cache_path"`
	} `mapstructure:"tts"`

	Voice struct {
		Pitches []float64 `mapstructure:"pitches"`
	} `mapstructure:"voice"`

	Narration struct {
		DefaultSpeaker string    `mapstructure:"default_speaker"`
		Speakers       []Speaker `mapstructure:"speakers"`
		Markers        []string  `mapstructure:"markers"`
	} `mapstructure:"narration"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func SetDefaults() {
	viper.SetDefault("store.root", ".")

	viper.SetDefault("tts.type", tts.EngineTypeAuto.String()) // Auto-select best engine
	viper.SetDefault("tts.rate", 1.0)
	viper.SetDefault("tts.volume", 1.0)
	viper.SetDefault("tts.language", "en-US")
	viper.SetDefault("tts.cache_path", "")

	viper.SetDefault("voice.pitches", voice.DefaultPitches)

	defaults := normalize.DefaultConfig()
	speakers := make([]map[string]interface{}, 0, len(defaults.Attributions))
	for _, a := range defaults.Attributions {
		speakers = append(speakers, map[string]interface{}{"name": a.Speaker, "verbs": a.Verbs})
	}
	viper.SetDefault("narration.default_speaker", story.DefaultSpeaker)
	viper.SetDefault("narration.speakers", speakers)
	viper.SetDefault("narration.markers", defaults.Markers)

	viper.SetDefault("log.level", "info")
}

// Load reads the current viper state into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Store.Root == "" {
		cfg.Store.Root = "."
	}
	return cfg, nil
}

// Normalizer returns the normalizer settings.
func (c Config) Normalizer() normalize.Config {
	n := normalize.Config{
		DefaultSpeaker: c.Narration.DefaultSpeaker,
		Markers:        c.Narration.Markers,
	}
	for _, s := range c.Narration.Speakers {
		n.Attributions = append(n.Attributions, normalize.Attribution{Speaker: s.Name, Verbs: s.Verbs})
	}
	return n
}

// Engine returns the speech engine settings.
func (c Config) Engine() tts.Config {
	return tts.Config{
		Type:      c.TTS.Type,
		Rate:      c.TTS.Rate,
		Volume:    c.TTS.Volume,
		Language:  c.TTS.Language,
		CachePath: c.TTS.CachePath,
	}
}

// ApplyLogLevel sets the logrus level, keeping the current one if level is invalid.
func (c Config) ApplyLogLevel() {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		logrus.WithError(err).WithField("level", c.Log.Level).Warn("unknown log level")
		return
	}
	logrus.SetLevel(level)
}
