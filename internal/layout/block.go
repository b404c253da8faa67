package layout

import "strconv"

// Block is one node of the document tree. The concrete types below are the
// only implementations.
type Block interface {
	isBlock()
}

type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

type Orientation string

const (
	Portrait  Orientation = "P"
	Landscape Orientation = "L"
)

// Color is an RGB triple.
type Color struct{ R, G, B int }

// Hex parses "#rrggbb". Malformed input yields black.
func Hex(s string) Color {
	if len(s) != 7 || s[0] != '#' {
		return Color{}
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return Color{}
	}
	return Color{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}
}

// Text is a paragraph.
type Text struct {
	Content string
	Size    float64
	Bold    bool
	Align   Align
	Color   Color
}

// Image is a picture scaled to Width, keeping its aspect ratio.
type Image struct {
	Asset InlineAsset
	Width float64
	Align Align
}

// Field is a bold label stacked over a plain value.
type Field struct {
	Label     string
	Value     string
	LabelSize float64
	ValueSize float64
}

// IconRow is a horizontal strip of same-size icons.
type IconRow struct {
	Icons []InlineAsset
	Size  float64
	Gap   float64
}

// Columns lays out two stacks side by side. LeftRatio is the share of the
// content width given to the left stack.
type Columns struct {
	Left      []Block
	Right     []Block
	LeftRatio float64
	Gap       float64
}

// Spacer is vertical whitespace.
type Spacer struct {
	Height float64
}

// PageBreak starts a new page in the given orientation.
type PageBreak struct {
	Orientation Orientation
}

// Table is a zebra striped grid. The header row is drawn bold.
type Table struct {
	Variant  TableVariant
	Header   []string
	Rows     [][]string
	FontSize float64
	Style    TableStyle
}

type TableStyle struct {
	EvenFill Color
	OddFill  Color
	Border   Color
	Text     Color
	// Centered shrinks the table to its content and centers it.
	Centered bool
}

func (Text) isBlock()      {}
func (Image) isBlock()     {}
func (Field) isBlock()     {}
func (IconRow) isBlock()   {}
func (Columns) isBlock()   {}
func (Spacer) isBlock()    {}
func (PageBreak) isBlock() {}
func (Table) isBlock()     {}

// ContactItem is one footer entry. Items with a Link are drawn in LinkColor.
type ContactItem struct {
	Icon InlineAsset
	Text string
	Link string
}

// Footer is drawn at the bottom of every page as two columns of contact
// items. Caption is printed above it on the last page only.
type Footer struct {
	Left         []ContactItem
	Right        []ContactItem
	IconSize     float64
	TextSize     float64
	TextColor    Color
	LinkColor    Color
	Caption      string
	CaptionSize  float64
	CaptionColor Color
}

// Document is the full layout handed to the renderer.
type Document struct {
	Title  string
	Margin float64
	Body   []Block
	Footer Footer
}
