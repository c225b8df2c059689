package ingest

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"
	"golang.org/x/net/html"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

var markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// TextProcessor handles markdown, docx, html and plain text. Pure
// extraction, no model calls.
type TextProcessor struct {
	log *logger.Logger
}

func NewTextProcessor(log *logger.Logger) *TextProcessor {
	return &TextProcessor{log: log.With("processor", "text")}
}

func (p *TextProcessor) Process(ctx context.Context, src Source) (*SourceDocument, error) {
	if src.SourceType != SourceText {
		return nil, unsupportedSourceType("text", src.SourceType)
	}

	ext := strings.ToLower(filepath.Ext(src.FileName))
	var (
		chunks []ContentChunk
		err    error
	)
	switch ext {
	case ".md", ".markdown":
		chunks = chunkMarkdown(string(src.Data))
	case ".docx":
		chunks, err = chunkDocx(src.Data)
	case ".html", ".htm":
		chunks, err = chunkHTML(src.Data)
	case ".txt", ".text":
		chunks = chunkPlain(string(src.Data))
	default:
		return nil, &UnsupportedFormatError{Got: ext, Reason: "unknown text file extension"}
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.FileName, err)
	}

	return &SourceDocument{
		SourceType:  SourceText,
		SourceURL:   src.SourceURL,
		Title:       src.FileName,
		Chunks:      chunks,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]any{"extension": ext},
	}, nil
}

// chunkMarkdown splits on ATX headings; runs of non-blank lines between
// headings become one paragraph chunk each.
func chunkMarkdown(content string) []ContentChunk {
	var chunks []ContentChunk
	var paragraph []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(paragraph, " "))
		paragraph = paragraph[:0]
		if text == "" {
			return
		}
		chunks = append(chunks, ContentChunk{
			Type:  ChunkParagraph,
			Text:  text,
			Index: len(chunks),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		if m := markdownHeadingRe.FindStringSubmatch(line); m != nil {
			flush()
			chunks = append(chunks, ContentChunk{
				Type:     ChunkHeading,
				Text:     strings.TrimSpace(m[2]),
				Index:    len(chunks),
				Metadata: map[string]any{"level": len(m[1])},
			})
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		paragraph = append(paragraph, strings.TrimSpace(line))
	}
	flush()
	return chunks
}

func chunkPlain(content string) []ContentChunk {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil
	}
	return []ContentChunk{{Type: ChunkParagraph, Text: text, Index: 0}}
}

// wordParagraph is the subset of the WordprocessingML paragraph element the
// extractor needs: style name plus run text.
type wordParagraph struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func chunkDocx(data []byte) ([]ContentChunk, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()
	content := doc.Editable().GetContent()

	var chunks []ContentChunk
	decoder := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "p" {
			continue
		}
		var para wordParagraph
		if err := decoder.DecodeElement(&para, &start); err != nil {
			continue
		}
		var text strings.Builder
		for _, run := range para.Runs {
			text.WriteString(run.Text)
		}
		trimmed := strings.TrimSpace(text.String())
		if trimmed == "" {
			continue
		}
		if level, ok := headingLevelFromStyle(para.Style.Val); ok {
			chunks = append(chunks, ContentChunk{
				Type:     ChunkHeading,
				Text:     trimmed,
				Index:    len(chunks),
				Metadata: map[string]any{"level": level},
			})
			continue
		}
		chunks = append(chunks, ContentChunk{Type: ChunkParagraph, Text: trimmed, Index: len(chunks)})
	}
	return chunks, nil
}

// headingLevelFromStyle maps style names like "Heading1" or "heading 2" to a
// level. Title counts as level 1.
func headingLevelFromStyle(style string) (int, bool) {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1, true
	}
	if !strings.HasPrefix(s, "heading") {
		return 0, false
	}
	rest := strings.TrimPrefix(s, "heading")
	if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
		return int(rest[0] - '0'), true
	}
	return 1, true
}

func chunkHTML(data []byte) ([]ContentChunk, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var chunks []ContentChunk
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				text := strings.TrimSpace(nodeText(n))
				if text != "" {
					chunks = append(chunks, ContentChunk{
						Type:     ChunkHeading,
						Text:     text,
						Index:    len(chunks),
						Metadata: map[string]any{"level": int(n.Data[1] - '0')},
					})
				}
				return
			case "p":
				text := strings.TrimSpace(nodeText(n))
				if text != "" {
					chunks = append(chunks, ContentChunk{Type: ChunkParagraph, Text: text, Index: len(chunks)})
				}
				return
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return chunks, nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
