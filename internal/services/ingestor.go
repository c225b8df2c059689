package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/platform/objectstore"
	"github.com/yungbote/courseforge-backend/internal/types"
)

// Ingestor runs material processing off the request path. Each job loads the
// raw source, runs the matching processor and lands the chunked document on
// the material row.
type Ingestor struct {
	log        *logger.Logger
	factory    *repos.Factory
	store      *objectstore.Store
	processors map[string]ingest.Processor

	wg sync.WaitGroup
}

func NewIngestor(log *logger.Logger, factory *repos.Factory, store *objectstore.Store, processors map[string]ingest.Processor) *Ingestor {
	return &Ingestor{
		log:        log.With("service", "Ingestor"),
		factory:    factory,
		store:      store,
		processors: processors,
	}
}

// Enqueue starts a background ingestion job for the material. Failures mark
// the row errored; they never surface to the upload request.
func (s *Ingestor) Enqueue(tenantID, materialID uuid.UUID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("ingestion panicked",
					"tenant_id", tenantID.String(), "material_id", materialID.String(), "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		s.run(ctx, tenantID, materialID)
	}()
}

// Wait blocks until in-flight jobs finish. Used on shutdown.
func (s *Ingestor) Wait() { s.wg.Wait() }

func (s *Ingestor) run(ctx context.Context, tenantID, materialID uuid.UUID) {
	materials := s.factory.Materials(tenantID)
	log := s.log.With("tenant_id", tenantID.String(), "material_id", materialID.String())

	material, err := materials.GetByID(ctx, materialID)
	if err != nil {
		log.Error("material vanished before ingestion", "error", err)
		return
	}
	if err := materials.MarkProcessing(ctx, materialID); err != nil {
		log.Error("failed to mark material processing", "error", err)
		return
	}

	doc, err := s.process(ctx, material)
	if err != nil {
		log.Warn("ingestion failed", "source_type", material.SourceType, "error", err)
		if merr := materials.MarkError(ctx, materialID, err.Error()); merr != nil {
			log.Error("failed to mark material errored", "error", merr)
		}
		return
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		log.Error("failed to serialize document", "error", err)
		_ = materials.MarkError(ctx, materialID, "internal: document serialization failed")
		return
	}
	if err := materials.MarkReady(ctx, materialID, raw); err != nil {
		log.Error("failed to mark material ready", "error", err)
		return
	}
	log.Info("material ingested", "source_type", material.SourceType, "chunks", len(doc.Chunks))
}

func (s *Ingestor) process(ctx context.Context, material *types.MaterialFile) (*ingest.SourceDocument, error) {
	processor, ok := s.processors[material.SourceType]
	if !ok {
		return nil, &ingest.UnsupportedFormatError{
			Got:    material.SourceType,
			Reason: "no processor registered",
		}
	}

	src := ingest.Source{
		SourceType: material.SourceType,
		SourceURL:  material.SourceURL,
		FileName:   material.OriginalName,
	}

	switch material.SourceType {
	case ingest.SourceWeb:
		// Nothing to stage; the processor fetches the URL itself.
	case ingest.SourceVideo:
		// Video tooling (ffmpeg, provider uploads) needs a real file.
		path, cleanup, err := s.stageToDisk(ctx, material)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		src.Path = path
	default:
		rc, err := s.store.Get(ctx, material.StorageKey)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read stored material: %w", err)
		}
		src.Data = data
	}

	return processor.Process(ctx, src)
}

func (s *Ingestor) stageToDisk(ctx context.Context, material *types.MaterialFile) (string, func(), error) {
	dir, err := os.MkdirTemp("", "material-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := material.OriginalName
	if name == "" {
		name = "source" + filepath.Ext(material.StorageKey)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := s.store.FetchToFile(ctx, material.StorageKey, path); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
