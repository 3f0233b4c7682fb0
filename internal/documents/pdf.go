package documents

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/studygenius/studygenius/internal/models"
	"rsc.io/pdf"
)

const (
	// MaxUploadSize is the largest accepted PDF payload (20MB)
	MaxUploadSize int64 = 20 << 20

	// maxExtractedTextBytes caps the plain text kept for prompting.
	// Large documents are truncated rather than rejected.
	maxExtractedTextBytes = 400_000
)

// ErrNotPDF is returned when the declared media type is not application/pdf
var ErrNotPDF = fmt.Errorf("file must be a PDF (%s)", models.PDFMediaType)

// FromUpload validates an uploaded file and wraps it as a Document.
// The media type check is strict: anything but application/pdf is rejected
// and no state changes. Text extraction is best-effort; a PDF the parser
// cannot read still produces a usable Document (the Gemini provider works
// from the raw bytes).
func FromUpload(name, mediaType string, data []byte) (*models.Document, error) {
	if mediaType != models.PDFMediaType {
		return nil, ErrNotPDF
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if int64(len(data)) > MaxUploadSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", MaxUploadSize)
	}

	doc := &models.Document{
		Name:      name,
		Data:      base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType,
	}

	pages, text := extractText(data)
	doc.Pages = pages
	doc.Text = text

	return doc, nil
}

// Bytes decodes the document payload back to raw PDF bytes
func Bytes(doc *models.Document) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document payload: %w", err)
	}
	return raw, nil
}

// extractText pulls plain text out of the PDF for providers that prompt over
// text. rsc.io/pdf panics on some malformed files, so the whole walk runs
// under a recover and degrades to (0, "").
func extractText(data []byte) (pages int, text string) {
	defer func() {
		if r := recover(); r != nil {
			pages, text = 0, ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, ""
	}

	pages = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		var lastY float64
		for _, t := range content.Text {
			if lastY != 0 && t.Y != lastY {
				sb.WriteByte('\n')
			}
			sb.WriteString(t.S)
			lastY = t.Y
		}
		sb.WriteByte('\n')
		if sb.Len() > maxExtractedTextBytes {
			break
		}
	}

	text = sb.String()
	if len(text) > maxExtractedTextBytes {
		text = text[:maxExtractedTextBytes]
	}
	return pages, text
}
