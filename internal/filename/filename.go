// Package filename builds safe, collision-free PDF file names.
package filename

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/local/pdfrename/internal/metadata"
)

// DefaultLimit is the maximum length of a sanitized name, in characters.
const DefaultLimit = 200

const pdfExt = ".pdf"

// space matches Unicode whitespace; \s alone is ASCII-only in RE2.
const space = `\s\p{Z}\x{1c}-\x{1f}\x{85}`

var (
	// Anything that is not a word character, whitespace, parenthesis,
	// hyphen or ampersand.
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_` + space + `()&-]+`)
	spaceRunRe   = regexp.MustCompile(`[` + space + `]+`)
)

// Sanitize strips characters that are unsafe or noisy in file names,
// collapses whitespace and truncates to limit characters. A non-positive
// limit selects DefaultLimit. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := norm.NFC.String(raw)
	s = disallowedRe.ReplaceAllString(s, "")
	// Removals can bring a base letter next to a combining mark.
	s = norm.NFC.String(s)
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > limit {
		s = strings.TrimSpace(string(r[:limit]))
	}
	return s
}

// Candidate formats rec as "{author} - {title} ({pubdate})" and sanitizes it.
func Candidate(rec metadata.Record, limit int) string {
	return Sanitize(fmt.Sprintf("%s - %s (%s)", rec.Author, rec.Title, rec.PubDate), limit)
}

// ResolveDestination returns an absolute path in baseDir for proposed that
// names no existing entry. ".pdf" is appended unless already present; on
// collision "_1", "_2", ... is inserted before the extension.
//
// The check is not atomic with respect to other processes writing baseDir.
func ResolveDestination(baseDir, proposed string) (string, error) {
	dir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", baseDir, err)
	}
	name := proposed
	if !strings.EqualFold(filepath.Ext(name), pdfExt) {
		name += pdfExt
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}
