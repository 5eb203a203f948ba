package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/insurepal/internal/models"
	"github.com/ledongthuc/pdf"
)

// PDFReader returns one document per page that has text.
type PDFReader struct{}

// NewPDFReader returns a PDF reader.
func NewPDFReader() *PDFReader {
	return &PDFReader{}
}

// Load reads the PDF at path. The pdf package panics on some malformed files;
// those panics are returned as errors.
func (r *PDFReader) Load(path string) (docs []*models.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			docs = nil
			err = fmt.Errorf("read PDF: %v", rec)
		}
	}()

	f, pr, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	numPages := pr.NumPage()
	for i := 1; i <= numPages; i++ {
		page := pr.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		docs = append(docs, &models.Document{
			Text: text,
			Metadata: map[string]interface{}{
				models.MetaPageLabel: strconv.Itoa(i),
			},
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("PDF has no extractable text (%d pages)", numPages)
	}
	return docs, nil
}
