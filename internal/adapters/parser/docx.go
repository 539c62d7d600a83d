package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart   = "word/document.xml"
	maxDocumentXML = 256 << 20
)

// DOCXParser implements ports.DocumentParser for Office Open XML documents.
// Every paragraph is followed by a blank line, so paragraph splitting sees
// one block per Word paragraph.
type DOCXParser struct{}

// NewDOCXParser creates a DOCXParser.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

// Parse reads the main document part of the archive and returns its text.
func (p *DOCXParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive: %w", err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("docx archive has no " + docxBodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", docxBodyPart, err)
	}
	defer rc.Close()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return documentText(io.LimitReader(rc, maxDocumentXML))
}

// SupportedFormats returns formats this parser handles.
func (p *DOCXParser) SupportedFormats() []string {
	return []string{"docx"}
}

// DOCParser accepts legacy binary Word documents so they can be stored, but
// cannot read them.
type DOCParser struct{}

// NewDOCParser creates a DOCParser.
func NewDOCParser() *DOCParser {
	return &DOCParser{}
}

// Parse always fails with ErrDOCUnsupported.
func (p *DOCParser) Parse(ctx context.Context, data []byte, filename string) (string, error) {
	return "", ErrDOCUnsupported
}

func (p *DOCParser) SupportedFormats() []string {
	return []string{"doc"}
}

// documentText walks WordprocessingML and collects run text. Tab and break
// elements inside paragraph or run properties describe layout, not content,
// and are skipped.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inText := false
	inProps := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", docxBodyPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr", "rPr", "sectPr":
				inProps++
			case "t":
				inText = inProps == 0
			case "tab":
				if inProps == 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if inProps == 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr", "rPr", "sectPr":
				inProps--
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
