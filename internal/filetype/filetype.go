package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// Info contains detected file type information
type Info struct {
	MIMEType  string
	Extension string
}

func (i Info) IsPDF() bool { return i.MIMEType == pdfMIME }

// Detect detects the actual file type using magic bytes, not filename
func Detect(path string) (Info, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", path).Msg("detected file type")
	return info, nil
}

// IsPDF reports whether path starts with a PDF header, whatever its name.
func IsPDF(path string) (bool, error) {
	info, err := Detect(path)
	if err != nil {
		return false, err
	}
	return info.IsPDF(), nil
}
