package models

// PDFMediaType is the only media type accepted by the upload boundary
const PDFMediaType = "application/pdf"

// Document is the uploaded PDF and its metadata. It is the unit of context
// for every generator. Immutable once built; a new upload replaces it wholesale.
type Document struct {
	Name      string `json:"name"`
	Data      string `json:"data"` // base64-encoded PDF bytes
	MediaType string `json:"mediaType"`
	Pages     int    `json:"pages,omitempty"`
	// Text is the extracted plain text, used by providers that cannot
	// accept inline PDF bytes. Not exposed over the API.
	Text string `json:"-"`
}

// IsPDF reports whether the document carries the accepted media type
func (d *Document) IsPDF() bool {
	return d != nil && d.MediaType == PDFMediaType
}
