package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yungbote/courseforge-backend/internal/platform/localmedia"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// WhisperVideoProcessor is the local fallback: audio extraction via ffmpeg,
// then a whisper.cpp run. Transcriptions are CPU-heavy, so a semaphore caps
// how many run at once.
type WhisperVideoProcessor struct {
	log        *logger.Logger
	transcoder *localmedia.Transcoder
	sem        *semaphore.Weighted
}

func NewWhisperVideoProcessor(log *logger.Logger, transcoder *localmedia.Transcoder, maxConcurrent int64) *WhisperVideoProcessor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &WhisperVideoProcessor{
		log:        log.With("processor", "video_whisper"),
		transcoder: transcoder,
		sem:        semaphore.NewWeighted(maxConcurrent),
	}
}

func (p *WhisperVideoProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourceVideo {
		return nil, unsupportedSourceType("video", src.SourceType)
	}
	if src.Path == "" {
		return nil, fmt.Errorf("video source has no local path")
	}
	if p.transcoder == nil {
		return nil, fmt.Errorf("local transcription not configured")
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	wavPath, err := p.transcoder.ExtractAudio(ctx, src.Path)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	defer os.Remove(wavPath)

	segments, err := p.transcoder.Transcribe(ctx, wavPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe audio: %w", err)
	}

	chunks := make([]ContentChunk, 0, len(segments))
	for _, seg := range segments {
		chunks = append(chunks, ContentChunk{
			Type:  ChunkTranscript,
			Text:  seg.Text,
			Index: len(chunks),
			Metadata: map[string]any{
				"start_sec": seg.Start,
				"end_sec":   seg.End,
			},
		})
	}

	return &SourceDocument{
		SourceType:  SourceVideo,
		SourceURL:   src.SourceURL,
		Title:       src.FileName,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"strategy": "whisper"},
	}, nil
}
