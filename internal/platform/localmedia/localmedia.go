package localmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// Segment is one transcribed span of audio, seconds from stream start.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcoder shells out to ffmpeg and a whisper.cpp binary. Both paths are
// resolved at construction so a missing binary surfaces before any request
// depends on it.
type Transcoder struct {
	log         *logger.Logger
	ffmpegPath  string
	whisperPath string
	modelPath   string
}

func NewTranscoder(log *logger.Logger, ffmpegBin, whisperBin, modelPath string) (*Transcoder, error) {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffmpegPath, err := exec.LookPath(ffmpegBin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found (%s): %w", ffmpegBin, err)
	}
	var whisperPath string
	if whisperBin != "" {
		whisperPath, err = exec.LookPath(whisperBin)
		if err != nil {
			return nil, fmt.Errorf("whisper binary not found (%s): %w", whisperBin, err)
		}
	}
	return &Transcoder{
		log:         log.With("component", "localmedia"),
		ffmpegPath:  ffmpegPath,
		whisperPath: whisperPath,
		modelPath:   modelPath,
	}, nil
}

// ExtractAudio converts the input media to mono 16 kHz WAV, the format the
// speech model expects. The caller owns cleanup of the returned path.
func (t *Transcoder) ExtractAudio(ctx context.Context, mediaPath string) (string, error) {
	out, err := os.CreateTemp("", "audio-*.wav")
	if err != nil {
		return "", err
	}
	outPath := out.Name()
	_ = out.Close()

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-i", mediaPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 500))
	}
	return outPath, nil
}

// Transcribe runs whisper.cpp over a prepared WAV file and parses its JSON
// output.
func (t *Transcoder) Transcribe(ctx context.Context, wavPath string) ([]Segment, error) {
	if t.whisperPath == "" {
		return nil, fmt.Errorf("no whisper binary configured")
	}

	outBase := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	args := []string{
		"-f", wavPath,
		"-oj",
		"-of", outBase,
	}
	if t.modelPath != "" {
		args = append([]string{"-m", t.modelPath}, args...)
	}

	cmd := exec.CommandContext(ctx, t.whisperPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w: %s", err, tail(stderr.String(), 500))
	}

	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return ParseWhisperOutput(raw)
}

// whisperFile mirrors the whisper.cpp -oj layout: transcription entries with
// millisecond offsets.
type whisperFile struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func ParseWhisperOutput(raw []byte) ([]Segment, error) {
	var file whisperFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}
	segments := make([]Segment, 0, len(file.Transcription))
	for _, entry := range file.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  text,
		})
	}
	return segments, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
