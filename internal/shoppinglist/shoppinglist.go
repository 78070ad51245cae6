// Package shoppinglist turns aggregated cart lines into a downloadable
// document.
//
// PAGE GEOMETRY (points, origin top-left, y grows downward):
//
//	y=50   Shopping list:              ← heading at x=50, first page only
//	y=70       1. Flour (g) - 300      ← lines at x=70, 20pt apart
//	y=90       2. Egg (pcs) - 2
//	...
//
// After a line is placed the cursor moves down 20pt. If it passes
// pageHeight-50 the next line starts a new page at y=50.
package shoppinglist

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/sakif/foodgram/internal/model"
)

const (
	Heading = "Shopping list:"

	headingX   = 50.0
	lineX      = 70.0
	topY       = 50.0
	lineStep   = 20.0
	bottomGap  = 50.0
	fontSize   = 14.0
	coreFont   = "Helvetica"
	a4WidthPt  = 595.28
	a4HeightPt = 841.89
)

// Placement is one string drawn at a fixed position.
type Placement struct {
	X, Y float64
	Text string
}

// Page holds the placements of one page, in drawing order.
type Page struct {
	Placements []Placement
}

// FormatLine renders the n-th (1-based) shopping list entry.
func FormatLine(n int, line model.CartLine) string {
	return fmt.Sprintf("%d. %s (%s) - %d", n, line.Name, line.MeasurementUnit, line.Total)
}

// Layout computes where every string goes. It is pure so pagination can be
// tested without parsing PDF output.
//
// A page is only opened when there is something to put on it, so a list
// that ends exactly at a page boundary does not produce a blank page.
func Layout(lines []model.CartLine, pageHeight float64) []Page {
	pages := []Page{{Placements: []Placement{{X: headingX, Y: topY, Text: Heading}}}}
	y := topY + lineStep

	for i, line := range lines {
		if y > pageHeight-bottomGap {
			pages = append(pages, Page{})
			y = topY
		}
		cur := &pages[len(pages)-1]
		cur.Placements = append(cur.Placements, Placement{X: lineX, Y: y, Text: FormatLine(i+1, line)})
		y += lineStep
	}

	return pages
}

// Render produces an A4 PDF of the shopping list.
//
// With a font registered through RegisterFont the text is drawn in that
// font and any Unicode the font covers comes out intact. Otherwise the
// core Helvetica font is used with a cp1252 translation, which cannot show
// Cyrillic.
func Render(lines []model.CartLine) ([]byte, error) {
	pdf, err := build(lines)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("shoppinglist: writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func build(lines []model.CartLine) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: a4WidthPt, Ht: a4HeightPt},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Shopping list", true)

	translate := func(s string) string { return s }
	if name, data, ok := activeFont(); ok {
		pdf.AddUTF8FontFromBytes(name, "", data)
		pdf.SetFont(name, "", fontSize)
	} else {
		pdf.SetFont(coreFont, "", fontSize)
		translate = pdf.UnicodeTranslatorFromDescriptor("")
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("shoppinglist: loading font: %w", err)
	}

	for _, page := range Layout(lines, a4HeightPt) {
		pdf.AddPage()
		for _, p := range page.Placements {
			pdf.Text(p.X, p.Y, translate(p.Text))
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("shoppinglist: drawing pdf: %w", err)
	}
	return pdf, nil
}

// RenderText produces the same list as plain text, one entry per line,
// for clients that cannot open PDFs.
func RenderText(lines []model.CartLine) []byte {
	var b strings.Builder
	b.WriteString(Heading)
	b.WriteByte('\n')
	for i, line := range lines {
		b.WriteString(FormatLine(i+1, line))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
