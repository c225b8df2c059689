package localmedia

import (
	"testing"
)

func TestParseWhisperOutput(t *testing.T) {
	raw := []byte(`{
		"transcription": [
			{"offsets": {"from": 0, "to": 4200}, "text": " Welcome to the course."},
			{"offsets": {"from": 4200, "to": 9500}, "text": " Today we cover consensus."},
			{"offsets": {"from": 9500, "to": 9600}, "text": "   "}
		]
	}`)
	segments, err := ParseWhisperOutput(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments (blank dropped), got %d", len(segments))
	}
	if segments[0].Start != 0 || segments[0].End != 4.2 {
		t.Fatalf("offset conversion wrong: %+v", segments[0])
	}
	if segments[0].Text != "Welcome to the course." {
		t.Fatalf("text not trimmed: %q", segments[0].Text)
	}
	if segments[1].Start != 4.2 || segments[1].End != 9.5 {
		t.Fatalf("second segment wrong: %+v", segments[1])
	}
}

func TestParseWhisperOutputRejectsGarbage(t *testing.T) {
	if _, err := ParseWhisperOutput([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
