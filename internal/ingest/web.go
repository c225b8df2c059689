package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// WebProcessor fetches a page and keeps only its main content.
type WebProcessor struct {
	log        *logger.Logger
	httpClient *http.Client
}

func NewWebProcessor(log *logger.Logger, timeout time.Duration) *WebProcessor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebProcessor{
		log:        log.With("processor", "web"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *WebProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourceWeb {
		return nil, unsupportedSourceType("web", src.SourceType)
	}
	pageURL, err := url.Parse(src.SourceURL)
	if err != nil || pageURL.Host == "" {
		return nil, fmt.Errorf("invalid web source url %q", src.SourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.SourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.SourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http %d", src.SourceURL, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.SourceURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.SourceURL, err)
	}

	title := article.Title
	if title == "" {
		title = src.SourceURL
	}
	return &SourceDocument{
		SourceType:  SourceWeb,
		SourceURL:   src.SourceURL,
		Title:       title,
		Chunks:      webChunks(article.TextContent),
		ProcessedAt: time.Now().UTC(),
		Metadata: map[string]any{
			"domain":           pageURL.Host,
			"content_snapshot": string(raw),
		},
	}, nil
}

// webChunks splits extracted text on paragraph breaks. Empty extraction is
// an empty chunk list, not an error.
func webChunks(text string) []ContentChunk {
	var chunks []ContentChunk
	for _, block := range strings.Split(text, "\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		chunks = append(chunks, ContentChunk{
			Type:  ChunkWebContent,
			Text:  block,
			Index: len(chunks),
		})
	}
	return chunks
}
