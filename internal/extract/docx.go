package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/insurepal/internal/models"
	"github.com/lu4p/cat"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

const contentTypesPath = "[Content_Types].xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wtTag matches <w:t>text</w:t> with any attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpEnd marks paragraph boundaries so extracted text keeps line structure.
var wpEnd = regexp.MustCompile(`</w:p>`)

// partNameRe and partNameRe2 find the main document part in either attribute order.
var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// DocxReader returns the body of a .docx file as a single document.
type DocxReader struct {
	// fallback reads a file when the OOXML walk finds no text.
	fallback func(path string) (string, error)
}

// NewDocxReader returns a DOCX reader that falls back to lu4p/cat.
func NewDocxReader() *DocxReader {
	return &DocxReader{fallback: cat.File}
}

// Load reads the .docx at path.
func (r *DocxReader) Load(path string) ([]*models.Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: not a zip: %w", err)
	}
	defer zr.Close()

	text, err := docxText(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if text == "" && r.fallback != nil {
		if alt, altErr := r.fallback(path); altErr == nil {
			text = strings.TrimSpace(alt)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("DOCX has no extractable text")
	}
	return []*models.Document{{Text: text, Metadata: map[string]interface{}{}}}, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// findDocxMainDocumentPath returns the main document part named in
// [Content_Types].xml without its leading slash, or "" if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	for _, f := range zr.File {
		if f.Name != contentTypesPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return ""
		}
		content := string(data)
		if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
		return ""
	}
	return ""
}

// docxText joins all <w:t> runs, one line per paragraph.
func docxText(zr *zip.Reader) (string, error) {
	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		docXML = data
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("DOCX part %s not found", docPath)
	}

	var lines []string
	for _, para := range wpEnd.Split(string(docXML), -1) {
		runs := wtTag.FindAllStringSubmatch(para, -1)
		if len(runs) == 0 {
			continue
		}
		var b strings.Builder
		for _, run := range runs {
			b.WriteString(run[1])
		}
		if line := strings.TrimSpace(unescapeXML(b.String())); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

var xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
