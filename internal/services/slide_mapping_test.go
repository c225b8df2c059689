package services

import (
	"context"
	"testing"
)

func TestSlideMappingSetValidation(t *testing.T) {
	gdb, log := openTestDB(t)
	fx := newGenerationFixture(t, gdb, log)
	svc := NewSlideMappingService(log, fx.factory)

	entries := []SlideMappingEntry{
		{SlideNumber: 1, VideoTimecode: "00:00:05"},
		{SlideNumber: 0, VideoTimecode: "00:00:10"},
		{SlideNumber: 2, VideoTimecode: "0:00:10"},
		{SlideNumber: 3, VideoTimecode: "00:12:30"},
		{SlideNumber: 1, VideoTimecode: "00:20:00"},
	}
	accepted, rejected, err := svc.Set(context.Background(), fx.tc, fx.course.ID, entries)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(accepted) != 2 {
		t.Fatalf("accepted = %d, want 2 (slides 1 and 3)", len(accepted))
	}
	if len(rejected) != 3 {
		t.Fatalf("rejected = %d, want 3", len(rejected))
	}

	stored, err := svc.List(context.Background(), fx.tc, fx.course.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 2 || stored[0].SlideNumber != 1 || stored[1].SlideNumber != 3 {
		t.Fatalf("stored mapping %+v, want slides [1 3]", stored)
	}
}

func TestSlideMappingSetAllInvalidPersistsNothing(t *testing.T) {
	gdb, log := openTestDB(t)
	fx := newGenerationFixture(t, gdb, log)
	svc := NewSlideMappingService(log, fx.factory)

	accepted, rejected, err := svc.Set(context.Background(), fx.tc, fx.course.ID, []SlideMappingEntry{
		{SlideNumber: -4, VideoTimecode: "00:00:05"},
		{SlideNumber: 2, VideoTimecode: "five seconds"},
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(accepted) != 0 || len(rejected) != 2 {
		t.Fatalf("accepted/rejected = %d/%d, want 0/2", len(accepted), len(rejected))
	}

	stored, err := svc.List(context.Background(), fx.tc, fx.course.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("stored = %d rows, want none", len(stored))
	}
}

func TestSlideMappingReplacesExisting(t *testing.T) {
	gdb, log := openTestDB(t)
	fx := newGenerationFixture(t, gdb, log)
	svc := NewSlideMappingService(log, fx.factory)

	if _, _, err := svc.Set(context.Background(), fx.tc, fx.course.ID, []SlideMappingEntry{
		{SlideNumber: 1, VideoTimecode: "00:00:05"},
		{SlideNumber: 2, VideoTimecode: "00:01:00"},
	}); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if _, _, err := svc.Set(context.Background(), fx.tc, fx.course.ID, []SlideMappingEntry{
		{SlideNumber: 7, VideoTimecode: "00:09:00"},
	}); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	stored, err := svc.List(context.Background(), fx.tc, fx.course.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 1 || stored[0].SlideNumber != 7 {
		t.Fatalf("stored %+v, want only slide 7", stored)
	}
}
