package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperjump/insurepal/internal/models"
)

// Metadata keys set on mail documents.
const (
	metaSubject = "subject"
	metaFrom    = "from"
	metaTo      = "to"
	metaDate    = "date"
)

// MailReader reads .mbox mailboxes (one document per message) and single .eml messages.
type MailReader struct{}

// NewMailReader returns a mail reader.
func NewMailReader() *MailReader {
	return &MailReader{}
}

// Load reads the mailbox or message at path. The format is chosen by the file
// extension; a .mbox without any "From " separator is read as one message.
func (r *MailReader) Load(path string) ([]*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mail file: %w", err)
	}
	var raws [][]byte
	if strings.EqualFold(filepath.Ext(path), ".mbox") {
		raws, err = splitMbox(data)
		if err != nil {
			return nil, err
		}
	} else {
		raws = [][]byte{data}
	}

	docs := make([]*models.Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := parseMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i+1, err)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, errors.New("mailbox contains no messages")
	}
	return docs, nil
}

func splitMbox(data []byte) ([][]byte, error) {
	mr := mbox.NewReader(bytes.NewReader(data))
	var out [][]byte
	for {
		msg, err := mr.NextMessage()
		if err == io.EOF {
			break
		}
		if errors.Is(err, mbox.ErrInvalidFormat) && len(out) == 0 {
			return [][]byte{data}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read mbox: %w", err)
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf("read mbox message: %w", err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func parseMessage(raw []byte) (*models.Document, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && (mr == nil || !isRecoverable(err)) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	subject, _ := mr.Header.Subject()
	from, _ := mr.Header.Text("From")
	to, _ := mr.Header.Text("To")
	date := mr.Header.Get("Date")

	body, err := messageBody(mr)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	meta := map[string]interface{}{}
	for _, h := range []struct{ label, key, value string }{
		{"Date", metaDate, date},
		{"From", metaFrom, from},
		{"To", metaTo, to},
		{"Subject", metaSubject, subject},
	} {
		if h.value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", h.label, h.value)
		meta[h.key] = h.value
	}
	b.WriteString("Content: ")
	b.WriteString(body)
	return &models.Document{Text: strings.TrimSpace(b.String()), Metadata: meta}, nil
}

// isRecoverable reports errors after which the entity is still readable,
// undecoded.
func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// messageBody walks the inline parts, nested multiparts included, with
// transfer encodings and charsets already decoded. text/plain is preferred
// over text/html; attachments are skipped.
func messageBody(mr *mail.Reader) (string, error) {
	var textParts, htmlParts []string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && (p == nil || !isRecoverable(err)) {
			if len(textParts)+len(htmlParts) > 0 {
				break
			}
			return "", fmt.Errorf("read message part: %w", err)
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, err := h.ContentType()
		if err != nil || mediaType == "" {
			mediaType = "text/plain"
		}
		content, err := io.ReadAll(p.Body)
		if err != nil {
			return "", fmt.Errorf("read message part: %w", err)
		}
		switch mediaType {
		case "text/plain":
			textParts = append(textParts, cleanText(content))
		case "text/html":
			htmlParts = append(htmlParts, stripHTMLTags(string(content)))
		}
	}
	if len(textParts) > 0 {
		return strings.Join(textParts, "\n"), nil
	}
	return strings.Join(htmlParts, "\n"), nil
}

// stripHTMLTags returns the visible text of an HTML body: entities decoded,
// script and style contents dropped, one line per block and no blank lines.
func stripHTMLTags(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					hidden++
				} else if tt == html.EndTagToken && hidden > 0 {
					hidden--
				}
			case atom.Br, atom.P, atom.Div, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4:
				b.WriteByte('\n')
			}
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
	var cleaned []string
	for _, line := range strings.Split(b.String(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
