package layout

import "strings"

// TableKind selects how the specification table is laid out.
type TableKind int

const (
	TableEmpty TableKind = iota
	TableCompact
	TableWide
)

func (k TableKind) String() string {
	switch k {
	case TableCompact:
		return "compact"
	case TableWide:
		return "wide"
	default:
		return "empty"
	}
}

// TableVariant is the layout decision for one table, taken once from the
// column count of its first row.
type TableVariant struct {
	Kind    TableKind
	Columns int
}

// ClassifyTable picks the variant for table. Tables with at least wideAt
// columns go on their own landscape page.
func ClassifyTable(table [][]string, wideAt int) TableVariant {
	if len(table) == 0 || blankRow(table[0]) {
		return TableVariant{Kind: TableEmpty}
	}
	c := len(table[0])
	if c >= wideAt {
		return TableVariant{Kind: TableWide, Columns: c}
	}
	return TableVariant{Kind: TableCompact, Columns: c}
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var zebra = TableStyle{
	EvenFill: Hex("#ececec"),
	OddFill:  Hex("#f7f7f7"),
	Border:   Hex("#b3b4b6"),
	Text:     Hex("#404d63"),
	Centered: true,
}

type tableBuilder func(v TableVariant, header []string, rows [][]string, logo InlineAsset) []Block

var tableBuilders = map[TableKind]tableBuilder{
	TableCompact: compactTable,
	TableWide:    wideTable,
}

func tableBlocks(v TableVariant, table [][]string, logo InlineAsset) []Block {
	if v.Kind == TableEmpty {
		return nil
	}
	header := fitRow(table[0], v.Columns)
	rows := make([][]string, 0, len(table)-1)
	for _, r := range table[1:] {
		rows = append(rows, fitRow(r, v.Columns))
	}
	return tableBuilders[v.Kind](v, header, rows, logo)
}

func compactTable(v TableVariant, header []string, rows [][]string, _ InlineAsset) []Block {
	return []Block{
		Text{Content: "Especificações", Size: 14, Bold: true, Align: AlignCenter},
		Spacer{Height: 15},
		Table{Variant: v, Header: header, Rows: rows, FontSize: 10, Style: zebra},
		Spacer{Height: 20},
	}
}

func wideTable(v TableVariant, header []string, rows [][]string, logo InlineAsset) []Block {
	size := 8.0
	if v.Columns > 16 {
		size = 6
	}
	return []Block{
		PageBreak{Orientation: Landscape},
		Image{Asset: logo, Width: 200, Align: AlignLeft},
		Spacer{Height: 10},
		Table{Variant: v, Header: header, Rows: rows, FontSize: size, Style: stretched(zebra)},
		Spacer{Height: 20},
	}
}

func stretched(s TableStyle) TableStyle {
	s.Centered = false
	return s
}

// fitRow pads or truncates row to n cells.
func fitRow(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
