// Package metadata turns free-form model output into bibliographic records.
package metadata

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrMalformed reports text that could not be decoded as JSON after repair.
	ErrMalformed = errors.New("malformed metadata response")
	// ErrInvalid reports decoded JSON that does not have the record shape.
	ErrInvalid = errors.New("invalid metadata shape")
	// ErrRejected reports a well-formed record that fails the content rules.
	ErrRejected = errors.New("unreliable metadata")
)

// Record is the author/title/pubdate triple inferred for one document.
type Record struct {
	Author  string `json:"author"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
}

var yearRe = regexp.MustCompile(`\d{4}`)

// Year returns the first 4-digit run in PubDate, or "" when there is none.
func (r Record) Year() string {
	return yearRe.FindString(r.PubDate)
}

// Validate applies the content rules: title present and not "unknown",
// author not "unknown" or "various". Comparisons ignore case and padding.
func (r Record) Validate() error {
	title := strings.ToLower(strings.TrimSpace(r.Title))
	author := strings.ToLower(strings.TrimSpace(r.Author))
	switch {
	case title == "":
		return fmt.Errorf("%w: empty title", ErrRejected)
	case title == "unknown":
		return fmt.Errorf("%w: title is unknown", ErrRejected)
	case author == "unknown" || author == "various":
		return fmt.Errorf("%w: author is %q", ErrRejected, author)
	}
	return nil
}
