package services

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

var timecodeRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// SlideMappingEntry is one submitted slide → timecode pair.
type SlideMappingEntry struct {
	SlideNumber   int    `json:"slide_number"`
	VideoTimecode string `json:"video_timecode"`
}

// RejectedMapping explains why one submitted entry was not persisted.
type RejectedMapping struct {
	SlideNumber   int    `json:"slide_number"`
	VideoTimecode string `json:"video_timecode"`
	Reason        string `json:"reason"`
}

type SlideMappingService interface {
	// Set validates and persists the submitted mapping. Valid entries are
	// stored even when others are rejected; the caller decides the HTTP
	// status from the two lists.
	Set(ctx context.Context, tc *TenantContext, courseID uuid.UUID, entries []SlideMappingEntry) (accepted []types.SlideMapping, rejected []RejectedMapping, err error)
	List(ctx context.Context, tc *TenantContext, courseID uuid.UUID) ([]types.SlideMapping, error)
}

type slideMappingService struct {
	log     *logger.Logger
	factory *repos.Factory
}

func NewSlideMappingService(log *logger.Logger, factory *repos.Factory) SlideMappingService {
	return &slideMappingService{log: log.With("service", "SlideMapping"), factory: factory}
}

func (s *slideMappingService) Set(ctx context.Context, tc *TenantContext, courseID uuid.UUID, entries []SlideMappingEntry) ([]types.SlideMapping, []RejectedMapping, error) {
	var accepted []types.SlideMapping
	var rejected []RejectedMapping
	seen := map[int]bool{}

	for _, entry := range entries {
		switch {
		case entry.SlideNumber < 1:
			rejected = append(rejected, RejectedMapping{
				SlideNumber: entry.SlideNumber, VideoTimecode: entry.VideoTimecode,
				Reason: "slide_number must be >= 1",
			})
		case !timecodeRe.MatchString(entry.VideoTimecode):
			rejected = append(rejected, RejectedMapping{
				SlideNumber: entry.SlideNumber, VideoTimecode: entry.VideoTimecode,
				Reason: "video_timecode must be HH:MM:SS",
			})
		case seen[entry.SlideNumber]:
			rejected = append(rejected, RejectedMapping{
				SlideNumber: entry.SlideNumber, VideoTimecode: entry.VideoTimecode,
				Reason: "duplicate slide_number",
			})
		default:
			seen[entry.SlideNumber] = true
			accepted = append(accepted, types.SlideMapping{
				SlideNumber:   entry.SlideNumber,
				VideoTimecode: entry.VideoTimecode,
			})
		}
	}

	if len(accepted) == 0 {
		return nil, rejected, nil
	}
	if err := s.factory.SlideMappings(tc.TenantID).Replace(ctx, courseID, accepted); err != nil {
		return nil, nil, err
	}
	s.log.Info("slide mapping stored",
		"tenant_id", tc.TenantID.String(), "course_id", courseID.String(),
		"accepted", len(accepted), "rejected", len(rejected))
	return accepted, rejected, nil
}

func (s *slideMappingService) List(ctx context.Context, tc *TenantContext, courseID uuid.UUID) ([]types.SlideMapping, error) {
	return s.factory.SlideMappings(tc.TenantID).ListByCourse(ctx, courseID)
}
