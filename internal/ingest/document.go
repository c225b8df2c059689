package ingest

import (
	"context"
	"fmt"
	"time"
)

// Chunk types produced by the processors.
const (
	ChunkTranscript       = "transcript"
	ChunkSlideText        = "slide_text"
	ChunkSlideDescription = "slide_description"
	ChunkParagraph        = "paragraph"
	ChunkHeading          = "heading"
	ChunkWebContent       = "web_content"
	ChunkMetadata         = "metadata"
)

// Source types a processor can accept.
const (
	SourceVideo        = "video"
	SourcePresentation = "presentation"
	SourceText         = "text"
	SourceWeb          = "web"
)

// ContentChunk is the atomic unit of ingested material.
type ContentChunk struct {
	Type     string         `json:"chunk_type"`
	Text     string         `json:"text"`
	Index    int            `json:"index"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceDocument is the uniform output of every processor.
type SourceDocument struct {
	SourceType  string         `json:"source_type"`
	SourceURL   string         `json:"source_url,omitempty"`
	Title       string         `json:"title"`
	Chunks      []ContentChunk `json:"chunks"`
	ProcessedAt time.Time      `json:"processed_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// SlideVideoMapping ties a presentation slide to a point in the lecture
// recording.
type SlideVideoMapping struct {
	SlideNumber   int    `json:"slide_number"`
	VideoTimecode string `json:"video_timecode"`
}

// CourseContext is the merged bundle handed to the architect.
type CourseContext struct {
	Documents          []SourceDocument    `json:"documents"`
	SlideVideoMappings []SlideVideoMapping `json:"slide_video_mappings,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// Source describes one raw input. File-based sources carry either the bytes
// or a local path; web sources carry only the URL.
type Source struct {
	SourceType string
	SourceURL  string
	FileName   string
	Path       string
	Data       []byte
}

// Processor turns one source into a chunked document.
type Processor interface {
	Process(ctx context.Context, src Source) (*SourceDocument, error)
}

// UnsupportedFormatError marks input the pipeline does not handle: wrong
// source type for a processor or an unknown file extension. Handlers map it
// to a 4xx.
type UnsupportedFormatError struct {
	Got    string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: %s", e.Got, e.Reason)
}

func unsupportedSourceType(processor, got string) *UnsupportedFormatError {
	return &UnsupportedFormatError{
		Got:    got,
		Reason: fmt.Sprintf("%s processor cannot handle this source type", processor),
	}
}
