package ingest

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const videoTranscriptPrompt = `Transcribe the spoken content of this lecture video.
Output one line per utterance in the exact form:
[MM:SS-MM:SS] spoken text
Use the start and end time of each utterance. Do not add commentary.`

var transcriptLineRe = regexp.MustCompile(`^\[(\d{1,3}):(\d{2}(?:\.\d+)?)-(\d{1,3}):(\d{2}(?:\.\d+)?)\]\s*(.*)$`)

// GeminiVideoProcessor uploads the recording to the provider file store and
// asks a vision model for a timestamped transcript.
type GeminiVideoProcessor struct {
	log     *logger.Logger
	client  *genai.Client
	modelID string
}

func NewGeminiVideoProcessor(log *logger.Logger, client *genai.Client, modelID string) *GeminiVideoProcessor {
	return &GeminiVideoProcessor{
		log:     log.With("processor", "video_gemini"),
		client:  client,
		modelID: modelID,
	}
}

func (p *GeminiVideoProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourceVideo {
		return nil, unsupportedSourceType("video", src.SourceType)
	}
	if src.Path == "" {
		return nil, fmt.Errorf("video source has no local path")
	}

	mimeType := mime.TypeByExtension(filepath.Ext(src.Path))
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	file, err := p.client.Files.UploadFromPath(ctx, src.Path, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	file, err = p.waitActive(ctx, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, derr := p.client.Files.Delete(context.Background(), file.Name, nil); derr != nil {
			p.log.Warn("failed to delete uploaded video", "file", file.Name, "error", derr)
		}
	}()

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			{Text: videoTranscriptPrompt},
		},
	}}
	resp, err := p.client.Models.GenerateContent(ctx, p.modelID, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0)),
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe video: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty transcription response")
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	return &SourceDocument{
		SourceType:  SourceVideo,
		SourceURL:   src.SourceURL,
		Title:       src.FileName,
		Chunks:      parseTimestampedTranscript(text.String()),
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"strategy": "gemini", "model_id": p.modelID},
	}, nil
}

func (p *GeminiVideoProcessor) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		var err error
		file, err = p.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("poll uploaded video: %w", err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("uploaded video in state %v", file.State)
	}
	return file, nil
}

// parseTimestampedTranscript turns "[MM:SS-MM:SS] text" lines into
// transcript chunks. Lines without a parsable timestamp are kept as plain
// transcript chunks.
func parseTimestampedTranscript(text string) []ContentChunk {
	var chunks []ContentChunk
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := transcriptLineRe.FindStringSubmatch(line); m != nil {
			startMin, _ := strconv.Atoi(m[1])
			startSec, _ := strconv.ParseFloat(m[2], 64)
			endMin, _ := strconv.Atoi(m[3])
			endSec, _ := strconv.ParseFloat(m[4], 64)
			body := strings.TrimSpace(m[5])
			if body == "" {
				continue
			}
			chunks = append(chunks, ContentChunk{
				Type:  ChunkTranscript,
				Text:  body,
				Index: len(chunks),
				Metadata: map[string]any{
					"start_sec": float64(startMin)*60 + startSec,
					"end_sec":   float64(endMin)*60 + endSec,
				},
			})
			continue
		}
		chunks = append(chunks, ContentChunk{
			Type:  ChunkTranscript,
			Text:  line,
			Index: len(chunks),
		})
	}
	return chunks
}
