package pdfmeta

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

// PdfcpuCodec implements Codec with github.com/pdfcpu/pdfcpu.
type PdfcpuCodec struct{}

// Open reads and validates the whole file into memory.
func (PdfcpuCodec) Open(path string) (Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, err
	}
	return &pdfcpuDoc{ctx: ctx}, nil
}

type pdfcpuDoc struct {
	ctx  *model.Context
	info Info
	// created is the CreationDate the output must carry, nil for none.
	created types.Object
}

// SetInfo updates Author, Title and CreationDate in the Info dictionary,
// creating the dictionary when the file has none. Without a year the
// existing CreationDate is kept.
func (d *pdfcpuDoc) SetInfo(info Info) error {
	dict, err := infoDict(d.ctx)
	if err != nil {
		return err
	}
	if info.Year != "" {
		d.created = types.StringLiteral(CreationDate(info.Year))
	} else if o, ok := dict["CreationDate"]; ok {
		if d.created, err = d.ctx.Dereference(o); err != nil {
			return fmt.Errorf("creation date: %w", err)
		}
	}
	d.info = info
	d.apply(dict)
	return nil
}

func (d *pdfcpuDoc) apply(dict types.Dict) {
	dict["Author"] = encodeText(d.info.Author)
	dict["Title"] = encodeText(d.info.Title)
	if d.created != nil {
		dict["CreationDate"] = d.created
	} else {
		delete(dict, "CreationDate")
	}
}

// WriteTo serializes the document and appends an incremental update that
// carries the Info dictionary. pdfcpu stamps CreationDate with the current
// time on every full write, so the wanted date only survives in an update
// written after it.
func (d *pdfcpuDoc) WriteTo(w io.Writer) error {
	d.ctx.WriteObjectStream = false
	d.ctx.WriteXRefStream = false

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return err
	}

	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	ctx, err := api.ReadContext(bytes.NewReader(buf.Bytes()), conf)
	if err != nil {
		return fmt.Errorf("reread: %w", err)
	}
	dict, err := infoDict(ctx)
	if err != nil {
		return err
	}
	d.apply(dict)
	ctx.Write.Increment = true
	ctx.Write.Offset = ctx.Read.FileSize
	ctx.Write.IncrementWithObjNr(ctx.Info.ObjectNumber.Value())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return api.WriteIncrement(ctx, w)
}

func infoDict(ctx *model.Context) (types.Dict, error) {
	if ctx.Info == nil {
		ir, err := ctx.IndRefForNewObject(types.Dict{})
		if err != nil {
			return nil, err
		}
		ctx.Info = ir
	}
	dict, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, errors.New("info dictionary unavailable")
	}
	return dict, nil
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// encodeText encodes s as a PDF text string: an escaped literal for
// printable ASCII, UTF-16BE with byte order mark otherwise.
func encodeText(s string) types.Object {
	if isPrintableASCII(s) {
		return types.StringLiteral(literalEscaper.Replace(s))
	}
	b, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return types.StringLiteral(literalEscaper.Replace(s))
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(b)))
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
