package tts

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/sirupsen/logrus"
)

const googleChunkLimit = 4800 // a little under 5000 to be safe

type GoogleClassicTTSEngine struct {
	client       *texttospeech.Client
	ctx          context.Context
	cancel       context.CancelFunc
	language     string
	volume       float64
	cacheRootDir string
	voices       []string
	playing      map[Handle]*googlePlayback
	done         *completions
	sampleRate   beep.SampleRate
	speakerOnce  sync.Once
	speakerErr   error
	mu           sync.Mutex
}

type googlePlayback struct {
	cancel    context.CancelFunc
	ctrl      *beep.Ctrl
	cancelled bool
}

func newGoogleClassicTTSEngine(config Config) (*GoogleClassicTTSEngine, error) {
	ctx, cancel := context.WithCancel(context.Background())
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create TTS client: %w", err)
	}

	cacheDir := config.CachePath
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "bigpicture-tts")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	language := config.Language
	if language == "" {
		language = "en-US"
	}

	return &GoogleClassicTTSEngine{
		client:       client,
		ctx:          ctx,
		cancel:       cancel,
		language:     language,
		volume:       config.Volume,
		cacheRootDir: cacheDir,
		playing:      make(map[Handle]*googlePlayback),
		done:         newCompletions(),
	}, nil
}

func (g *GoogleClassicTTSEngine) Name() string { return EngineTypeGoogleClassic.String() }

// Speak synthesizes and plays u in the background.
func (g *GoogleClassicTTSEngine) Speak(u Utterance) (Handle, error) {
	if err := g.ctx.Err(); err != nil {
		return 0, fmt.Errorf("engine closed: %w", err)
	}

	h := g.done.issue()
	ctx, cancel := context.WithCancel(g.ctx)

	g.mu.Lock()
	pb := &googlePlayback{cancel: cancel}
	g.playing[h] = pb
	g.mu.Unlock()

	go g.run(ctx, h, pb, u)
	return h, nil
}

func (g *GoogleClassicTTSEngine) run(ctx context.Context, h Handle, pb *googlePlayback, u Utterance) {
	paths, err := g.synthesize(ctx, u)
	if err != nil {
		g.finish(h, pb, nil, err)
		return
	}

	var streamers []beep.Streamer
	var closers []beep.StreamSeekCloser
	for _, p := range paths {
		s, format, err := g.decode(p)
		if err != nil {
			closeAll(closers)
			g.finish(h, pb, nil, err)
			return
		}
		closers = append(closers, s)
		if err := g.initSpeaker(format); err != nil {
			closeAll(closers)
			g.finish(h, pb, nil, err)
			return
		}
		var stream beep.Streamer = s
		if format.SampleRate != g.sampleRate {
			stream = beep.Resample(4, format.SampleRate, g.sampleRate, s)
		}
		streamers = append(streamers, stream)
	}

	g.mu.Lock()
	if pb.cancelled {
		g.mu.Unlock()
		closeAll(closers)
		g.finish(h, pb, nil, nil)
		return
	}
	pb.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamers...)}
	// The callback runs on the speaker goroutine with the speaker locked.
	speaker.Play(beep.Seq(pb.ctrl, beep.Callback(func() {
		go g.finish(h, pb, closers, nil)
	})))
	g.mu.Unlock()
}

func (g *GoogleClassicTTSEngine) finish(h Handle, pb *googlePlayback, closers []beep.StreamSeekCloser, err error) {
	closeAll(closers)

	g.mu.Lock()
	cancelled := pb.cancelled
	delete(g.playing, h)
	g.mu.Unlock()
	pb.cancel()

	res := Completion{Handle: h, Cancelled: cancelled}
	if err != nil && !cancelled {
		res.Err = err
	}
	g.done.complete(res)
}

func (g *GoogleClassicTTSEngine) initSpeaker(format beep.Format) error {
	g.speakerOnce.Do(func() {
		g.sampleRate = format.SampleRate
		g.speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	return g.speakerErr
}

func (g *GoogleClassicTTSEngine) decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to open cached MP3 %s: %w", path, err)
	}
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("failed to decode MP3 %s: %w", path, err)
	}
	return streamer, format, nil
}

// synthesize returns cached mp3 chunk paths for u, calling the API for any missing chunk.
func (g *GoogleClassicTTSEngine) synthesize(ctx context.Context, u Utterance) ([]string, error) {
	cacheDir := filepath.Join(g.cacheRootDir, "google_classic")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}

	audioCfg := g.audioConfig(u)
	contentHash := md5Sum(fmt.Sprintf("%s|%s|%.2f|%.2f", u.Text, u.Voice, audioCfg.Pitch, audioCfg.SpeakingRate))[:12]

	chunks := splitIntoChunks(u.Text, googleChunkLimit)
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		path := filepath.Join(cacheDir, fmt.Sprintf("%s_%d.mp3", contentHash, i))
		paths = append(paths, path)
		if _, err := os.Stat(path); err == nil {
			continue
		}

		req := &texttospeechpb.SynthesizeSpeechRequest{
			Input: &texttospeechpb.SynthesisInput{
				InputSource: &texttospeechpb.SynthesisInput_Text{Text: chunk},
			},
			Voice: &texttospeechpb.VoiceSelectionParams{
				LanguageCode: g.language,
				Name:         u.Voice,
			},
			AudioConfig: audioCfg,
		}
		resp, err := g.client.SynthesizeSpeech(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}
		if err := os.WriteFile(path, resp.AudioContent, 0644); err != nil {
			return nil, fmt.Errorf("failed to write MP3 chunk %d to %s: %w", i, path, err)
		}

		logrus.WithFields(logrus.Fields{
			"chunk": i + 1,
			"of":    len(chunks),
			"path":  path,
		}).Debug("cached synthesized audio")
	}
	return paths, nil
}

func (g *GoogleClassicTTSEngine) audioConfig(u Utterance) *texttospeechpb.AudioConfig {
	cfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}

	// Chirp voices don't support speakingRate/pitch, skip them
	if strings.Contains(strings.ToLower(u.Voice), "chirp") {
		return cfg
	}

	if u.Rate > 0 {
		cfg.SpeakingRate = clamp(u.Rate, 0.25, 4.0)
	}
	if u.Pitch > 0 {
		cfg.Pitch = clamp(12*math.Log2(u.Pitch), -20, 20)
	}
	if g.volume > 0 {
		cfg.VolumeGainDb = clamp(20*math.Log10(g.volume), -96, 16)
	}
	return cfg
}

// Cancel stops h whether it is still synthesizing or already playing.
func (g *GoogleClassicTTSEngine) Cancel(h Handle) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pb, ok := g.playing[h]
	if !ok {
		return ErrUnknownHandle
	}
	pb.cancelled = true
	pb.cancel()
	if pb.ctrl != nil {
		speaker.Lock()
		pb.ctrl.Streamer = nil
		speaker.Unlock()
	}
	return nil
}

func (g *GoogleClassicTTSEngine) OnCompletion(h Handle, fn CompletionFunc) {
	g.done.register(h, fn)
}

func (g *GoogleClassicTTSEngine) GetAvailableVoices() ([]string, error) {
	g.mu.Lock()
	if g.voices != nil {
		defer g.mu.Unlock()
		return append([]string(nil), g.voices...), nil
	}
	g.mu.Unlock()

	resp, err := g.client.ListVoices(g.ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: g.language})
	if err != nil {
		return nil, err
	}
	voices := []string{}
	for _, v := range resp.Voices {
		voices = append(voices, v.Name)
	}

	g.mu.Lock()
	g.voices = voices
	g.mu.Unlock()
	return append([]string(nil), voices...), nil
}

// Close cancels in-flight synthesis and releases the API client.
func (g *GoogleClassicTTSEngine) Close() error {
	g.cancel()
	speaker.Clear()
	return g.client.Close()
}

// GetCacheStats returns cache statistics for the current engine
func (g *GoogleClassicTTSEngine) GetCacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalFiles int64
	var totalSize int64

	err := filepath.Walk(g.cacheRootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Continue walking despite errors
		}

		if !info.IsDir() && strings.HasSuffix(strings.ToLower(info.Name()), ".mp3") {
			totalFiles++
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	stats["cache_directory"] = g.cacheRootDir
	stats["cached_files"] = totalFiles
	stats["total_size_mb"] = float64(totalSize) / (1024 * 1024)
	return stats, nil
}

// ClearCache removes all cached files
func (g *GoogleClassicTTSEngine) ClearCache() error {
	return os.RemoveAll(g.cacheRootDir)
}

func closeAll(closers []beep.StreamSeekCloser) {
	for _, c := range closers {
		c.Close()
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func md5Sum(s string) string {
	h := md5.New()
	io.WriteString(h, s)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func splitIntoChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text) // safe for UTF-8
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
