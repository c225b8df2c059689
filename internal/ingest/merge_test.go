package ingest

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func slideDoc() SourceDocument {
	return SourceDocument{
		SourceType:  SourcePresentation,
		Title:       "deck.pdf",
		ProcessedAt: time.Now().UTC(),
		Chunks: []ContentChunk{
			{Type: ChunkSlideText, Text: "Slide one", Index: 0, Metadata: map[string]any{"slide_number": 1}},
			{Type: ChunkSlideText, Text: "Slide two", Index: 1, Metadata: map[string]any{"slide_number": 2}},
			{Type: ChunkSlideText, Text: "Slide three", Index: 2, Metadata: map[string]any{"slide_number": 3}},
		},
	}
}

func TestMergeRejectsEmptyInput(t *testing.T) {
	if _, err := Merge(nil, nil); !errors.Is(err, ErrNoDocuments) {
		t.Fatalf("expected ErrNoDocuments, got %v", err)
	}
}

func TestMergeSortsBySourcePriority(t *testing.T) {
	docs := []SourceDocument{
		{SourceType: SourceWeb, Title: "article"},
		{SourceType: SourceText, Title: "notes-a"},
		{SourceType: SourceVideo, Title: "lecture"},
		{SourceType: "mystery", Title: "odd"},
		{SourceType: SourceText, Title: "notes-b"},
		{SourceType: SourcePresentation, Title: "deck"},
	}
	cc, err := Merge(docs, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	var titles []string
	for _, d := range cc.Documents {
		titles = append(titles, d.Title)
	}
	// Stable: notes-a stays before notes-b; unknown types last.
	want := []string{"lecture", "deck", "notes-a", "notes-b", "article", "odd"}
	if !reflect.DeepEqual(titles, want) {
		t.Fatalf("order %v, want %v", titles, want)
	}
	// Input slice order must be untouched.
	if docs[0].Title != "article" || docs[5].Title != "deck" {
		t.Fatalf("input mutated: %v", docs)
	}
}

func TestMergeSlideVideoCrossReference(t *testing.T) {
	original := slideDoc()
	docs := []SourceDocument{original}
	mappings := []SlideVideoMapping{
		{SlideNumber: 1, VideoTimecode: "00:10:00"},
		{SlideNumber: 3, VideoTimecode: "00:25:00"},
	}

	cc, err := Merge(docs, mappings)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := cc.Documents[0].Chunks
	if tc, _ := got[0].Metadata["video_timecode"].(string); tc != "00:10:00" {
		t.Fatalf("slide 1 timecode wrong: %+v", got[0].Metadata)
	}
	if _, present := got[1].Metadata["video_timecode"]; present {
		t.Fatalf("slide 2 must be untouched: %+v", got[1].Metadata)
	}
	if tc, _ := got[2].Metadata["video_timecode"].(string); tc != "00:25:00" {
		t.Fatalf("slide 3 timecode wrong: %+v", got[2].Metadata)
	}

	// Copy-on-update: the original document's chunks keep their metadata.
	for i, chunk := range original.Chunks {
		if _, present := chunk.Metadata["video_timecode"]; present {
			t.Fatalf("input chunk %d mutated: %+v", i, chunk.Metadata)
		}
	}
	if len(cc.SlideVideoMappings) != 2 {
		t.Fatalf("mappings not carried: %+v", cc.SlideVideoMappings)
	}
}

func TestMergeLeavesNonSlideChunksAlone(t *testing.T) {
	doc := SourceDocument{
		SourceType: SourcePresentation,
		Chunks: []ContentChunk{
			{Type: ChunkSlideDescription, Text: "desc", Metadata: map[string]any{"slide_number": 1}},
		},
	}
	cc, err := Merge([]SourceDocument{doc}, []SlideVideoMapping{{SlideNumber: 1, VideoTimecode: "00:01:00"}})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, present := cc.Documents[0].Chunks[0].Metadata["video_timecode"]; present {
		t.Fatal("non slide_text chunk must not gain a timecode")
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	docs := []SourceDocument{slideDoc(), {SourceType: SourceVideo, Title: "lecture"}}
	mappings := []SlideVideoMapping{{SlideNumber: 2, VideoTimecode: "00:05:00"}}

	a, err := Merge(docs, mappings)
	if err != nil {
		t.Fatalf("merge a: %v", err)
	}
	b, err := Merge(docs, mappings)
	if err != nil {
		t.Fatalf("merge b: %v", err)
	}
	if !reflect.DeepEqual(a.Documents, b.Documents) {
		t.Fatal("same inputs produced different documents")
	}
}
