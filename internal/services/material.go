package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/platform/apierr"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/platform/objectstore"
	"github.com/yungbote/courseforge-backend/internal/types"
)

// ErrInvalidSourceURL rejects web sources that are not plain http(s).
var ErrInvalidSourceURL = apierr.New(http.StatusBadRequest, "invalid_request",
	errors.New("source url must be http or https"))

// extension → source type routing for uploaded files.
var sourceTypeByExt = map[string]string{
	".mp4":      ingest.SourceVideo,
	".mov":      ingest.SourceVideo,
	".mkv":      ingest.SourceVideo,
	".webm":     ingest.SourceVideo,
	".pdf":      ingest.SourcePresentation,
	".pptx":     ingest.SourcePresentation,
	".md":       ingest.SourceText,
	".markdown": ingest.SourceText,
	".docx":     ingest.SourceText,
	".html":     ingest.SourceText,
	".htm":      ingest.SourceText,
	".txt":      ingest.SourceText,
	".text":     ingest.SourceText,
}

type MaterialService interface {
	// UploadFile stores the raw file and enqueues ingestion.
	UploadFile(ctx context.Context, tc *TenantContext, courseID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*types.MaterialFile, error)
	// AddURL registers a web source and enqueues ingestion.
	AddURL(ctx context.Context, tc *TenantContext, courseID uuid.UUID, sourceURL string) (*types.MaterialFile, error)
	List(ctx context.Context, tc *TenantContext, courseID uuid.UUID) ([]types.MaterialFile, error)
}

type materialService struct {
	log      *logger.Logger
	factory  *repos.Factory
	store    *objectstore.Store
	ingestor *Ingestor
}

func NewMaterialService(log *logger.Logger, factory *repos.Factory, store *objectstore.Store, ingestor *Ingestor) MaterialService {
	return &materialService{
		log:      log.With("service", "Material"),
		factory:  factory,
		store:    store,
		ingestor: ingestor,
	}
}

func (s *materialService) UploadFile(ctx context.Context, tc *TenantContext, courseID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*types.MaterialFile, error) {
	if _, err := s.factory.Courses(tc.TenantID).GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	sourceType, ok := sourceTypeByExt[ext]
	if !ok {
		return nil, &ingest.UnsupportedFormatError{Got: ext, Reason: "no processor for this file type"}
	}

	material := &types.MaterialFile{
		CourseID:     courseID,
		SourceType:   sourceType,
		OriginalName: fileName,
		MimeType:     contentType,
		SizeBytes:    size,
		Status:       types.MaterialStatusUploaded,
	}
	material.StorageKey = fmt.Sprintf("tenants/%s/courses/%s/materials/%s%s",
		tc.TenantID, courseID, uuid.New(), ext)

	if err := s.store.Put(ctx, material.StorageKey, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store material: %w", err)
	}
	if err := s.factory.Materials(tc.TenantID).Create(ctx, material); err != nil {
		return nil, err
	}

	s.ingestor.Enqueue(tc.TenantID, material.ID)
	s.log.Info("material uploaded",
		"tenant_id", tc.TenantID.String(), "course_id", courseID.String(),
		"material_id", material.ID.String(), "source_type", sourceType)
	return material, nil
}

func (s *materialService) AddURL(ctx context.Context, tc *TenantContext, courseID uuid.UUID, sourceURL string) (*types.MaterialFile, error) {
	if _, err := s.factory.Courses(tc.TenantID).GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return nil, ErrInvalidSourceURL
	}

	material := &types.MaterialFile{
		CourseID:   courseID,
		SourceType: ingest.SourceWeb,
		SourceURL:  sourceURL,
		Status:     types.MaterialStatusUploaded,
	}
	if err := s.factory.Materials(tc.TenantID).Create(ctx, material); err != nil {
		return nil, err
	}

	s.ingestor.Enqueue(tc.TenantID, material.ID)
	s.log.Info("web material registered",
		"tenant_id", tc.TenantID.String(), "course_id", courseID.String(),
		"material_id", material.ID.String())
	return material, nil
}

func (s *materialService) List(ctx context.Context, tc *TenantContext, courseID uuid.UUID) ([]types.MaterialFile, error) {
	if _, err := s.factory.Courses(tc.TenantID).GetByID(ctx, courseID); err != nil {
		return nil, err
	}
	return s.factory.Materials(tc.TenantID).ListByCourse(ctx, courseID)
}

// backgroundTimeout bounds one ingestion job; video transcription dominates.
const backgroundTimeout = 30 * time.Minute
