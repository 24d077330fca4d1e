package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse turns a raw model response into a validated Record. Every failure is
// returned as an error wrapping ErrMalformed, ErrInvalid or ErrRejected;
// callers treat any of them as "no metadata found".
func Parse(raw string) (Record, error) {
	text := normalize(raw)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	obj := doc.(map[string]any)
	rec := Record{
		Author:  stringField(obj, "author"),
		Title:   stringField(obj, "title"),
		PubDate: stringField(obj, "pubdate"),
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
