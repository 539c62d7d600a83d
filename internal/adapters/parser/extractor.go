package parser

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// MIME types understood by the extractor.
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC      = "application/msword"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

var (
	// ErrUnsupportedType is returned for MIME types without a parser.
	ErrUnsupportedType = errors.New("unsupported file type for extraction")
	// ErrDOCUnsupported is returned for legacy binary Word documents.
	ErrDOCUnsupported = errors.New("DOC extraction not supported")
)

var extTypes = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".doc":  MIMEDOC,
	".txt":  MIMEText,
	".text": MIMEText,
	".md":   MIMEMarkdown,
}

// MIMETypeByExt maps a file extension (with dot, any case) to the MIME type
// used for extraction. Unknown extensions return "".
func MIMETypeByExt(ext string) string {
	return extTypes[strings.ToLower(ext)]
}

// ExtractionError reports a failure to turn a file into text. It is kept
// apart from segmentation errors so callers can store the upload anyway.
type ExtractionError struct {
	FileName string
	MIMEType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %q (%s): %v", e.FileName, e.MIMEType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var _ ports.TextExtractor = (*Extractor)(nil)

// Extractor implements ports.TextExtractor by dispatching on MIME type.
type Extractor struct {
	parsers map[string]ports.DocumentParser
}

// NewExtractor registers the in-process text, DOCX and legacy DOC parsers
// and, when pdf is non-nil, the PDF parser.
func NewExtractor(pdf ports.DocumentParser) *Extractor {
	e := &Extractor{parsers: make(map[string]ports.DocumentParser)}
	e.Register(NewTextParser())
	e.Register(NewDOCXParser())
	e.Register(NewDOCParser())
	if pdf != nil {
		e.Register(pdf)
	}
	return e
}

// Register adds or replaces the parser for every format p reports. Formats
// are file extensions without the dot; unknown ones are ignored.
func (e *Extractor) Register(p ports.DocumentParser) {
	for _, format := range p.SupportedFormats() {
		if mt := MIMETypeByExt("." + format); mt != "" {
			e.parsers[mt] = p
		}
	}
}

// ContentType returns the MIME type an upload is extracted as: the declared
// type, or the one implied by the file extension when the declared type is
// empty or generic.
func (e *Extractor) ContentType(upload entities.Upload) string {
	mt := baseMIME(upload.MIMEType)
	if mt == "" || mt == "application/octet-stream" {
		mt = MIMETypeByExt(upload.Ext())
	}
	return mt
}

// Extract returns the text of the upload with line endings normalised.
func (e *Extractor) Extract(ctx context.Context, upload entities.Upload) (string, error) {
	mt := e.ContentType(upload)
	p, ok := e.parsers[mt]
	if !ok {
		return "", &ExtractionError{FileName: upload.FileName, MIMEType: upload.MIMEType, Err: ErrUnsupportedType}
	}

	text, err := p.Parse(ctx, upload.Data, upload.FileName)
	if err != nil {
		return "", &ExtractionError{FileName: upload.FileName, MIMEType: mt, Err: err}
	}
	return NormalizeNewlines(text), nil
}

// SupportedTypes returns the registered MIME types, sorted.
func (e *Extractor) SupportedTypes() []string {
	types := make([]string, 0, len(e.parsers))
	for mt := range e.parsers {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return newlines.Replace(s)
}

func baseMIME(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
