package render

import (
	"bytes"

	"github.com/go-pdf/fpdf"

	"catalog/internal/layout"
)

const (
	lineSpacing = 1.25
	cellPad     = 4.0
	footerRow   = 15.0
	captionRow  = 14.0
)

type region struct {
	x, w float64
}

type compiler struct {
	pdf         *fpdf.Fpdf
	tr          func(string) string
	family      string
	doc         *layout.Document
	orientation layout.Orientation
	footerH     float64
	skipped     []string
}

// compile draws doc onto a new A4 document. Errors are left on the Fpdf
// value and surface from OutputFileAndClose. skipped names the images the
// writer could not embed.
func compile(doc *layout.Document, fontDir string) (pdf *fpdf.Fpdf, skipped []string) {
	pdf = fpdf.New(string(layout.Portrait), "pt", "A4", fontDir)
	c := &compiler{pdf: pdf, doc: doc, orientation: layout.Portrait}

	if fontDir != "" {
		pdf.AddUTF8Font("Roboto", "", fontRegular)
		pdf.AddUTF8Font("Roboto", "B", fontBold)
		c.family = "Roboto"
		c.tr = func(s string) string { return s }
	} else {
		c.family = "Helvetica"
		c.tr = pdf.UnicodeTranslatorFromDescriptor("")
	}

	rows := max(len(doc.Footer.Left), len(doc.Footer.Right))
	c.footerH = float64(rows)*footerRow + captionRow

	m := doc.Margin
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(m, m, m)
	pdf.SetAutoPageBreak(true, m+c.footerH)
	pdf.SetFooterFuncLpi(c.footer)

	pdf.AddPage()
	c.blocks(c.content(), doc.Body)
	return pdf, c.skipped
}

func (c *compiler) content() region {
	w, _ := c.pdf.GetPageSize()
	return region{x: c.doc.Margin, w: w - 2*c.doc.Margin}
}

func (c *compiler) bottom() float64 {
	_, h := c.pdf.GetPageSize()
	_, brk := c.pdf.GetAutoPageBreak()
	return h - brk
}

func (c *compiler) addPage(o layout.Orientation) {
	c.orientation = o
	c.pdf.AddPageFormat(string(o), c.pdf.GetPageSizeStr("A4"))
}

func (c *compiler) font(bold bool, size float64) {
	style := ""
	if bold {
		style = "B"
	}
	c.pdf.SetFont(c.family, style, size)
}

func (c *compiler) blocks(r region, blocks []layout.Block) {
	for _, b := range blocks {
		switch b := b.(type) {
		case layout.Text:
			c.text(r, b.Content, b.Size, b.Bold, b.Align, b.Color)
		case layout.Field:
			c.text(r, b.Label, b.LabelSize, true, layout.AlignLeft, layout.Color{})
			c.pdf.SetY(c.pdf.GetY() + 2)
			c.text(r, b.Value, b.ValueSize, false, layout.AlignLeft, layout.Color{})
			c.pdf.SetY(c.pdf.GetY() + 10)
		case layout.Image:
			c.image(r, b)
		case layout.IconRow:
			c.iconRow(r, b)
		case layout.Columns:
			c.columns(r, b)
		case layout.Spacer:
			c.pdf.SetY(c.pdf.GetY() + b.Height)
		case layout.PageBreak:
			c.addPage(b.Orientation)
			r = c.content()
		case layout.Table:
			c.table(r, b)
		}
	}
}

func (c *compiler) text(r region, s string, size float64, bold bool, align layout.Align, col layout.Color) {
	c.font(bold, size)
	c.pdf.SetTextColor(col.R, col.G, col.B)
	h := size * lineSpacing
	lines := c.pdf.SplitText(c.tr(s), r.w)
	if len(lines) == 0 {
		lines = []string{""}
	}
	for _, line := range lines {
		c.pdf.SetX(r.x)
		c.pdf.CellFormat(r.w, h, line, "", 2, string(align), false, 0, "")
	}
}

// register adds a to the document once and returns its natural size. An
// image the writer rejects is skipped and its error cleared, so the rest of
// the document still renders. A zero width means skip.
func (c *compiler) register(a layout.InlineAsset) (w, h float64) {
	if c.pdf.Err() {
		return 0, 0
	}
	info := c.pdf.RegisterImageOptionsReader(a.Name, fpdf.ImageOptions{ImageType: a.Type}, bytes.NewReader(a.Data))
	if c.pdf.Err() {
		c.skipped = append(c.skipped, a.Name)
		c.pdf.ClearError()
		return 0, 0
	}
	if info == nil {
		return 0, 0
	}
	return info.Width(), info.Height()
}

func (c *compiler) image(r region, img layout.Image) {
	nw, nh := c.register(img.Asset)
	if nw == 0 {
		return
	}
	w := min(img.Width, r.w)
	h := w * nh / nw
	if c.pdf.GetY()+h > c.bottom() {
		c.addPage(c.orientation)
	}
	x := r.x
	switch img.Align {
	case layout.AlignCenter:
		x += (r.w - w) / 2
	case layout.AlignRight:
		x += r.w - w
	}
	y := c.pdf.GetY()
	c.pdf.ImageOptions(img.Asset.Name, x, y, w, h, false, fpdf.ImageOptions{ImageType: img.Asset.Type}, 0, "")
	c.pdf.SetY(y + h)
}

func (c *compiler) iconRow(r region, row layout.IconRow) {
	if len(row.Icons) == 0 {
		return
	}
	total := float64(len(row.Icons))*row.Size + float64(len(row.Icons)-1)*row.Gap
	x := r.x + (r.w-total)/2
	y := c.pdf.GetY()
	for _, icon := range row.Icons {
		if nw, _ := c.register(icon); nw == 0 {
			continue
		}
		c.pdf.ImageOptions(icon.Name, x, y, row.Size, row.Size, false, fpdf.ImageOptions{ImageType: icon.Type}, 0, "")
		x += row.Size + row.Gap
	}
	c.pdf.SetY(y + row.Size)
}

func (c *compiler) columns(r region, cols layout.Columns) {
	lw := (r.w - cols.Gap) * cols.LeftRatio
	rw := r.w - cols.Gap - lw
	top := c.pdf.GetY()
	page := c.pdf.PageNo()

	c.blocks(region{x: r.x, w: lw}, cols.Left)
	leftEnd, leftPage := c.pdf.GetY(), c.pdf.PageNo()

	c.pdf.SetPage(page)
	c.pdf.SetY(top)
	c.blocks(region{x: r.x + lw + cols.Gap, w: rw}, cols.Right)
	rightEnd, rightPage := c.pdf.GetY(), c.pdf.PageNo()

	switch {
	case leftPage > rightPage:
		c.pdf.SetPage(leftPage)
		c.pdf.SetY(leftEnd)
	case rightPage > leftPage:
		c.pdf.SetY(rightEnd)
	default:
		c.pdf.SetY(max(leftEnd, rightEnd))
	}
}

func (c *compiler) table(r region, t layout.Table) {
	if len(t.Header) == 0 {
		return
	}
	widths := make([]float64, len(t.Header))
	measure := func(row []string, bold bool) {
		c.font(bold, t.FontSize)
		for i, cell := range row {
			widths[i] = max(widths[i], c.pdf.GetStringWidth(c.tr(cell))+2*cellPad)
		}
	}
	measure(t.Header, true)
	for _, row := range t.Rows {
		measure(row, false)
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	x0 := r.x
	switch {
	case total > r.w || !t.Style.Centered:
		scale := r.w / total
		for i := range widths {
			widths[i] *= scale
		}
	default:
		x0 += (r.w - total) / 2
	}

	c.tableRow(x0, widths, t, t.Header, 0)
	for i, row := range t.Rows {
		if !c.fits(widths, t, row) {
			c.addPage(c.orientation)
			c.tableRow(x0, widths, t, t.Header, 0)
		}
		c.tableRow(x0, widths, t, row, i+1)
	}
}

func (c *compiler) rowLines(widths []float64, t layout.Table, row []string, bold bool) ([][]string, float64) {
	c.font(bold, t.FontSize)
	lines := make([][]string, len(row))
	n := 1
	for i, cell := range row {
		lines[i] = c.pdf.SplitText(c.tr(cell), max(widths[i]-2*cellPad, 1))
		n = max(n, len(lines[i]))
	}
	return lines, float64(n)*t.FontSize*lineSpacing + cellPad
}

func (c *compiler) fits(widths []float64, t layout.Table, row []string) bool {
	_, h := c.rowLines(widths, t, row, false)
	return c.pdf.GetY()+h <= c.bottom()
}

func (c *compiler) tableRow(x0 float64, widths []float64, t layout.Table, row []string, index int) {
	lines, h := c.rowLines(widths, t, row, index == 0)
	fill := t.Style.OddFill
	if index%2 == 0 {
		fill = t.Style.EvenFill
	}
	c.pdf.SetFillColor(fill.R, fill.G, fill.B)
	c.pdf.SetDrawColor(t.Style.Border.R, t.Style.Border.G, t.Style.Border.B)
	c.pdf.SetTextColor(t.Style.Text.R, t.Style.Text.G, t.Style.Text.B)
	c.pdf.SetLineWidth(1)

	y := c.pdf.GetY()
	x := x0
	lh := t.FontSize * lineSpacing
	for i, w := range widths {
		c.pdf.Rect(x, y, w, h, "FD")
		for k, line := range lines[i] {
			c.pdf.SetXY(x+cellPad, y+cellPad/2+float64(k)*lh)
			c.pdf.CellFormat(w-2*cellPad, lh, line, "", 0, "C", false, 0, "")
		}
		x += w
	}
	c.pdf.SetXY(x0, y+h)
}

// footer is registered with SetFooterFuncLpi and runs as each page closes.
func (c *compiler) footer(lastPage bool) {
	f := c.doc.Footer
	r := c.content()
	_, ph := c.pdf.GetPageSize()
	y := ph - c.doc.Margin - c.footerH

	if lastPage && f.Caption != "" {
		c.font(false, f.CaptionSize)
		c.pdf.SetTextColor(f.CaptionColor.R, f.CaptionColor.G, f.CaptionColor.B)
		c.pdf.SetXY(r.x, y)
		c.pdf.CellFormat(r.w, captionRow, c.tr(f.Caption), "", 0, "C", false, 0, "")
	}
	y += captionRow

	half := r.w / 2
	c.contactColumn(region{x: r.x, w: half}, y, f.Left)
	c.contactColumn(region{x: r.x + half, w: half}, y, f.Right)
}

func (c *compiler) contactColumn(r region, y float64, items []layout.ContactItem) {
	f := c.doc.Footer
	for i, item := range items {
		top := y + float64(i)*footerRow
		if nw, _ := c.register(item.Icon); nw != 0 {
			c.pdf.ImageOptions(item.Icon.Name, r.x, top+(footerRow-f.IconSize)/2, f.IconSize, f.IconSize, false, fpdf.ImageOptions{ImageType: item.Icon.Type}, 0, "")
		}
		col := f.TextColor
		if item.Link != "" {
			col = f.LinkColor
		}
		c.font(false, f.TextSize)
		c.pdf.SetTextColor(col.R, col.G, col.B)
		c.pdf.SetXY(r.x+f.IconSize+5, top)
		c.pdf.CellFormat(r.w-f.IconSize-5, footerRow, c.tr(item.Text), "", 0, "L", false, 0, item.Link)
	}
}
