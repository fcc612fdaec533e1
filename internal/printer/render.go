package printer

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Label formats
const (
	FormatPNG = "png"
	FormatPDF = "pdf"
)

// Renderer turns a label id into a printable document
type Renderer interface {
	Render(labelID string) ([]byte, error)
}

// NewRenderer returns the renderer for format, PNG when unknown
func NewRenderer(format string) Renderer {
	if format == FormatPDF {
		return &PDFRenderer{}
	}
	return &PNGRenderer{Scale: 2, Height: 80}
}

// PNGRenderer Code-128 bars only
type PNGRenderer struct {
	Scale  int // module width in pixels
	Height int
}

func (r *PNGRenderer) Render(labelID string) ([]byte, error) {
	bc, err := code128.Encode(labelID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode code128: %w", err)
	}

	scale := r.Scale
	if scale < 1 {
		scale = 1
	}
	height := r.Height
	if height < 1 {
		height = 80
	}
	scaled, err := barcode.Scale(bc, bc.Bounds().Dx()*scale, height)
	if err != nil {
		return nil, fmt.Errorf("failed to scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// PDFRenderer 100x50mm label with the bars and the readable id below
type PDFRenderer struct{}

func (r *PDFRenderer) Render(labelID string) ([]byte, error) {
	cfg := config.NewBuilder().
		WithDimensions(100, 50).
		WithLeftMargin(5).
		WithTopMargin(5).
		WithRightMargin(5).
		Build()

	m := maroto.New(cfg)
	m.AddRow(28, code.NewBarCol(12, labelID, props.Barcode{Center: true, Percent: 95}))
	m.AddRow(8, text.NewCol(12, labelID, props.Text{Size: 10, Align: align.Center, Top: 1}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate label pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
