package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const slideDescriptionAction = "slide_description"

var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// completer is the slice of the router the processor needs; kept narrow so
// tests can stub it.
type completer interface {
	Complete(ctx context.Context, action, prompt string, opts router.Options) (*router.Response, error)
}

// PresentationProcessor extracts slide text from PDF and PPTX decks. When a
// router is supplied it additionally asks a model to describe each slide;
// description failures degrade to text-only chunks.
type PresentationProcessor struct {
	log    *logger.Logger
	router completer
}

func NewPresentationProcessor(log *logger.Logger, r *router.Router) *PresentationProcessor {
	p := &PresentationProcessor{log: log.With("processor", "presentation")}
	if r != nil {
		p.router = r
	}
	return p
}

func (p *PresentationProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourcePresentation {
		return nil, unsupportedSourceType("presentation", src.SourceType)
	}

	ext := strings.ToLower(filepath.Ext(src.FileName))
	var (
		slides []string
		err    error
	)
	switch ext {
	case ".pdf":
		slides, err = extractPDFPages(src.Data)
	case ".pptx":
		slides, err = extractPPTXSlides(src.Data)
	default:
		return nil, &UnsupportedFormatError{Got: ext, Reason: "unknown presentation file extension"}
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.FileName, err)
	}

	var chunks []ContentChunk
	for i, text := range slides {
		slideNumber := i + 1
		text = strings.TrimSpace(text)
		if text != "" {
			chunks = append(chunks, ContentChunk{
				Type:     ChunkSlideText,
				Text:     text,
				Index:    len(chunks),
				Metadata: map[string]any{"slide_number": slideNumber},
			})
		}
		if p.router == nil || text == "" {
			continue
		}
		if desc := p.describeSlide(ctx, slideNumber, text); desc != "" {
			chunks = append(chunks, ContentChunk{
				Type:     ChunkSlideDescription,
				Text:     desc,
				Index:    len(chunks),
				Metadata: map[string]any{"slide_number": slideNumber},
			})
		}
	}

	return &SourceDocument{
		SourceType:  SourcePresentation,
		SourceURL:   src.SourceURL,
		Title:       src.FileName,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"extension": ext, "slide_count": len(slides)},
	}, nil
}

// describeSlide asks the model for a short summary of the slide. Any failure
// is logged and swallowed: the slide text chunk already exists.
func (p *PresentationProcessor) describeSlide(ctx context.Context, slideNumber int, text string) string {
	prompt := fmt.Sprintf(
		"Describe what slide %d of a lecture deck conveys, in two sentences at most. Slide content:\n\n%s",
		slideNumber, text)
	resp, err := p.router.Complete(ctx, slideDescriptionAction, prompt, router.Options{MaxTokens: 256})
	if err != nil {
		p.log.Warn("slide description failed, keeping text only",
			"slide_number", slideNumber, "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

func extractPDFPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the deck.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// pptxShapeText pulls every a:t run out of one slide part.
type pptxTextRun struct {
	Text string `xml:",chardata"`
}

func extractPPTXSlides(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}

	numbered := map[int]*zip.File{}
	var order []int
	for _, f := range zr.File {
		m := slidePathRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		numbered[n] = f
		order = append(order, n)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no slides found in archive")
	}
	sort.Ints(order)

	slides := make([]string, 0, len(order))
	for _, n := range order {
		rc, err := numbered[n].Open()
		if err != nil {
			return nil, fmt.Errorf("open slide %d: %w", n, err)
		}
		text, err := pptxSlideText(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", n, err)
		}
		slides = append(slides, text)
	}
	return slides, nil
}

func pptxSlideText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "t" {
			continue
		}
		var run pptxTextRun
		if err := decoder.DecodeElement(&run, &start); err != nil {
			return "", err
		}
		if s := strings.TrimSpace(run.Text); s != "" {
			paragraphs = append(paragraphs, s)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
