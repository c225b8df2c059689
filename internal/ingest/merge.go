package ingest

import (
	"errors"
	"sort"
	"time"
)

// ErrNoDocuments is returned when a merge is attempted over nothing.
var ErrNoDocuments = errors.New("no documents to merge")

// sourcePriority orders documents for the architect: the recording first,
// then slides, then written material, then scraped pages.
var sourcePriority = map[string]int{
	SourceVideo:        0,
	SourcePresentation: 1,
	SourceText:         2,
	SourceWeb:          3,
}

// Merge builds the CourseContext: documents stably sorted by source
// priority, with slide text cross-referenced to video timecodes when a
// mapping is provided. Inputs are never mutated.
func Merge(docs []SourceDocument, mappings []SlideVideoMapping) (*CourseContext, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	sorted := make([]SourceDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityOf(sorted[i].SourceType) < priorityOf(sorted[j].SourceType)
	})

	if len(mappings) > 0 {
		timecodes := make(map[int]string, len(mappings))
		for _, m := range mappings {
			timecodes[m.SlideNumber] = m.VideoTimecode
		}
		for i := range sorted {
			if sorted[i].SourceType == SourcePresentation {
				sorted[i] = crossReferenceSlides(sorted[i], timecodes)
			}
		}
	}

	return &CourseContext{
		Documents:          sorted,
		SlideVideoMappings: mappings,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func priorityOf(sourceType string) int {
	if p, ok := sourcePriority[sourceType]; ok {
		return p
	}
	return len(sourcePriority)
}

// crossReferenceSlides returns a copy of the document where each slide_text
// chunk with a mapped slide number gains metadata.video_timecode. The input
// document and its chunks are left untouched.
func crossReferenceSlides(doc SourceDocument, timecodes map[int]string) SourceDocument {
	changed := false
	chunks := make([]ContentChunk, len(doc.Chunks))
	copy(chunks, doc.Chunks)

	for i, chunk := range chunks {
		if chunk.Type != ChunkSlideText {
			continue
		}
		slideNumber, ok := slideNumberOf(chunk)
		if !ok {
			continue
		}
		timecode, ok := timecodes[slideNumber]
		if !ok {
			continue
		}
		meta := make(map[string]any, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			meta[k] = v
		}
		meta["video_timecode"] = timecode
		chunks[i].Metadata = meta
		changed = true
	}
	if changed {
		doc.Chunks = chunks
	}
	return doc
}

func slideNumberOf(chunk ContentChunk) (int, bool) {
	switch v := chunk.Metadata["slide_number"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
