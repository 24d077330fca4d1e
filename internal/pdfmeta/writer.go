// Package pdfmeta rewrites the document information of a PDF file.
package pdfmeta

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Info is the document information written into a PDF.
type Info struct {
	Author string
	Title  string
	// Year is a 4-digit year; CreationDate is left alone when empty.
	Year string
}

// CreationDate formats year as a PDF date pinned to January 1st, 00:00 UTC.
func CreationDate(year string) string {
	return "D:" + year + "0101000000Z"
}

// Document is an opened PDF whose pages can be re-serialized with new info.
type Document interface {
	SetInfo(info Info) error
	WriteTo(w io.Writer) error
}

// Codec opens PDF files.
type Codec interface {
	Open(path string) (Document, error)
}

// Writer copies a PDF with updated document information.
type Writer struct {
	codec Codec
}

// NewWriter creates a Writer. A nil codec selects the pdfcpu backend.
func NewWriter(codec Codec) *Writer {
	if codec == nil {
		codec = PdfcpuCodec{}
	}
	return &Writer{codec: codec}
}

// Write reads every page of src and writes them, in order, with info to dst.
// Output goes to a temporary sibling of dst that is renamed over dst only
// after it was completely written, so dst is never left truncated.
// src and dst may be the same file.
func (w *Writer) Write(src, dst string, info Info) error {
	st, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	doc, err := w.codec.Open(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(src), err)
	}
	if err := doc.SetInfo(info); err != nil {
		return fmt.Errorf("set info: %w", err)
	}
	if err := writeAtomic(dst, st.Mode().Perm(), doc.WriteTo); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return nil
}

// WriteYear is Write for callers that only need success or failure.
// The error is logged.
func (w *Writer) WriteYear(src, dst, author, title, year string) bool {
	if err := w.Write(src, dst, Info{Author: author, Title: title, Year: year}); err != nil {
		log.Error().Err(err).Str("src", src).Str("dst", dst).Msg("metadata write failed")
		return false
	}
	return true
}

func writeAtomic(dst string, perm os.FileMode, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}
