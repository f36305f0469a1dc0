package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF files. It tries the embedded
// text layer first and falls back to scraping printable characters from the
// raw bytes, which salvages something from PDFs with broken encodings.
type PDFExtractor struct {
	// MinTextLength is the minimum amount of extracted text considered a
	// successful extraction; anything shorter is treated as failed so the
	// document is excluded instead of being indexed as garbage.
	MinTextLength int
}

var _ Extractor = &PDFExtractor{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{MinTextLength: 120}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	text := extractPDFText(data)
	if utf8.RuneCountInString(text) < e.MinTextLength {
		return "", fmt.Errorf("%w: only %d characters extracted from %s", ErrExtractionFailed, len(text), path)
	}
	return text, nil
}

func extractPDFText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data))); err == nil {
		if reader, err := r.GetPlainText(); err == nil {
			if out, err := io.ReadAll(reader); err == nil && len(out) > 0 {
				return string(out)
			}
		}
	}
	return string(extractPrintableText(data))
}

func extractPrintableText(in []byte) []byte {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			b := in[0]
			if isPrintableASCII(b) {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if isPrintableRune(r) {
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}

func isPrintableASCII(b byte) bool {
	return b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127)
}

func isPrintableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r <= 0x10FFFF
}
