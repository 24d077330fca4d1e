// Package pdftext extracts plain text from the leading pages of a PDF.
package pdftext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultPages is the number of leading pages read when none is given.
const DefaultPages = 5

// ErrNoText is returned when none of the sampled pages yields text.
var ErrNoText = errors.New("no extractable text")

// Doc abstracts a PDF document for text extraction.
type Doc interface {
	NumPage() int
	Page(i int) (Page, error)
	Close() error
}

// Page abstracts a single PDF page for text extraction.
type Page interface {
	Text() (string, error)
	Close()
}

// Opener abstracts opening a PDF path into a Doc.
type Opener interface {
	Open(path string) (Doc, error)
}

// Extractor reads text from the first pages of a document.
type Extractor struct {
	opener Opener
}

// NewExtractor creates an Extractor. A nil opener selects the go-fitz backend.
func NewExtractor(opener Opener) *Extractor {
	if opener == nil {
		opener = FitzOpener{}
	}
	return &Extractor{opener: opener}
}

// FirstPages returns the trimmed text of up to n leading pages joined by a
// blank line. Pages without text are left out; ErrNoText is returned when
// nothing remains.
func (e *Extractor) FirstPages(path string, n int) (string, error) {
	if n <= 0 {
		n = DefaultPages
	}
	doc, err := e.opener.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := min(doc.NumPage(), n)
	texts := make([]string, 0, total)
	for i := 0; i < total; i++ {
		text, err := pageText(doc, i)
		if err != nil {
			log.Warn().Err(err).Str("pdf", path).Int("page", i+1).Msg("failed to extract text from page")
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}

	log.Debug().Str("pdf", path).Int("pages", total).Int("with_text", len(texts)).Msg("extracted leading pages")
	if len(texts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(texts, "\n\n"), nil
}

func pageText(doc Doc, i int) (string, error) {
	p, err := doc.Page(i)
	if err != nil {
		return "", err
	}
	defer p.Close()
	return p.Text()
}
