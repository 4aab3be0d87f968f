package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnreadable marks a document whose text could not be read: not a PDF,
// corrupt, or rejected by validation.
var ErrUnreadable = errors.New("document unreadable")

const maxConcurrentReads = 4

// PDFTextReader turns a PDF into plain text. pdfcpu validates the file in
// relaxed mode and counts its pages; ledongthuc/pdf decodes each page's text.
type PDFTextReader struct {
	logger *zap.Logger
}

func NewPDFTextReader(logger *zap.Logger) *PDFTextReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFTextReader{logger: logger}
}

// Text returns the text of one PDF, pages in order. A scanned PDF with no text
// layer yields an empty string, not an error.
func (r *PDFTextReader) Text(ctx context.Context, data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return "", fmt.Errorf("%w: missing PDF header", ErrUnreadable)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pageCount, err := validatePDF(data)
	if err != nil {
		return "", err
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open: %v", ErrUnreadable, err)
	}

	fonts := make(map[string]*pdf.Font)
	var text strings.Builder
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		t, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			text.WriteString(t)
			text.WriteString("\n")
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		r.logger.Warn("PDF has no extractable text layer.", zap.Int("pageCount", pageCount))
	}
	return out, nil
}

// validatePDF reads and validates data with pdfcpu, returning its page count.
func validatePDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return pctx.XRefTable.PageCount, nil
}

// JoinedText reads several documents concurrently and joins their text in
// argument order. Any unreadable document fails the whole call.
func (r *PDFTextReader) JoinedText(ctx context.Context, docs ...[]byte) (string, error) {
	texts := make([]string, len(docs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentReads)
	for i, doc := range docs {
		eg.Go(func() error {
			t, err := r.Text(gctx, doc)
			if err != nil {
				return fmt.Errorf("document %d: %w", i+1, err)
			}
			texts[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
