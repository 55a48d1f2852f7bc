// Package services wires the pipeline components to uploaded files:
// extraction, anonymization, chunking and indexing.
package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"mediscan-backend/internal/faults"
	"mediscan-backend/internal/logger"
)

// PDFExtractor pulls per-page text out of uploaded PDFs, trying
// methods in order of reliability and scoring the output.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

type extraction struct {
	pages   []string
	method  string
	quality float64
}

// ExtractPages returns one string per page, in page order. Each method
// is tried in turn; a result of quality 0.7 or better wins outright,
// otherwise the best attempt above 0.3 is used.
func (e *PDFExtractor) ExtractPages(ctx context.Context, filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, faults.Wrap(faults.NotFound, err, "failed to read uploaded file")
	}

	methods := []struct {
		name    string
		extract func(context.Context, []byte) ([]string, error)
	}{
		{"poppler", e.extractWithPoppler},
		{"go-pdf", e.extractWithGoPDF},
	}

	var best *extraction
	var lastErr error

	for _, method := range methods {
		pages, err := method.extract(ctx, content)
		if err != nil {
			logger.Warn("Extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		quality := evaluateTextQuality(strings.Join(pages, "\n"))
		logger.Info("Extraction attempt", "method", method.name, "pages", len(pages), "quality", quality)

		if quality >= 0.7 {
			return pages, nil
		}
		if best == nil || quality > best.quality {
			best = &extraction{pages: pages, method: method.name, quality: quality}
		}
	}

	if best != nil && best.quality >= 0.3 {
		logger.Warn("Using best-effort extraction", "method", best.method, "quality", best.quality)
		return best.pages, nil
	}

	return nil, faults.Wrap(faults.InputError, lastErr, "could not extract readable text from the document")
}

// extractWithPoppler shells out to pdftotext; pages arrive separated by
// form feeds.
func (e *PDFExtractor) extractWithPoppler(ctx context.Context, content []byte) ([]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-layout", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	var pages []string
	for _, page := range strings.Split(stdout.String(), "\f") {
		if strings.TrimSpace(page) != "" {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted by pdftotext")
	}
	return pages, nil
}

// extractWithGoPDF walks the document page by page with the pure-Go
// reader.
func (e *PDFExtractor) extractWithGoPDF(_ context.Context, content []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			logger.Warn("Failed to extract page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no text extracted by go-pdf")
	}
	return pages, nil
}

// evaluateTextQuality scores extracted text between 0 and 1 based on
// character composition.
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return 0.0
	}
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted int
	for _, r := range text {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == ' ' || r == '\n' || r == '\t':
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126:
			printable++
		case r > 127:
			printable++
		}
	}

	total := len([]rune(text))
	score := float64(printable)/float64(total)*0.5 - float64(corrupted)/float64(total)*2.0

	if ratio := float64(alphanumeric) / float64(total); ratio >= 0.3 {
		score += 0.3
	} else {
		score += ratio
	}
	if len(text) > 100 {
		score += 0.2
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
