package ingest

import (
	"context"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// CompositeVideoProcessor tries the hosted vision transcription first and
// falls back to the local pipeline when enabled. The fallback result is
// tagged so downstream consumers know which path produced it.
type CompositeVideoProcessor struct {
	log             *logger.Logger
	primary         Processor
	fallback        Processor
	fallbackEnabled bool
}

func NewCompositeVideoProcessor(log *logger.Logger, primary, fallback Processor, fallbackEnabled bool) *CompositeVideoProcessor {
	return &CompositeVideoProcessor{
		log:             log.With("processor", "video"),
		primary:         primary,
		fallback:        fallback,
		fallbackEnabled: fallbackEnabled,
	}
}

func (p *CompositeVideoProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourceVideo {
		return nil, unsupportedSourceType("video", src.SourceType)
	}

	doc, err := p.primary.Process(ctx, src)
	if err == nil {
		return doc, nil
	}
	if !p.fallbackEnabled || p.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	p.log.Warn("primary video transcription failed, trying local fallback", "error", err)
	doc, ferr := p.fallback.Process(ctx, src)
	if ferr != nil {
		p.log.Error("fallback video transcription failed too", "error", ferr)
		return nil, ferr
	}
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	doc.Metadata["strategy"] = "whisper"
	return doc, nil
}
