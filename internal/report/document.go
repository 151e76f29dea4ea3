// Package report composes the printable layout of an ELN export: an ordered
// list of headings, paragraphs, preformatted text and tables that a renderer
// turns into pages.
package report

// Page geometry in points, landscape US Letter.
const (
	Inch = 72.0

	PageWidth    = 11 * Inch
	PageHeight   = 8.5 * Inch
	MarginLeft   = 0.5 * Inch
	MarginRight  = 0.5 * Inch
	MarginBottom = 0.5 * Inch
	// MarginTop reserves room for the logo above the content.
	MarginTop = 1.2 * Inch

	AvailableWidth = PageWidth - MarginLeft - MarginRight
	MinColumnWidth = 0.4 * Inch
)

// Kind is the type of a Block.
type Kind int

const (
	Heading1 Kind = iota + 1
	Heading2
	Heading3
	Heading4
	Paragraph
	Small
	Note
	Code
	ErrorText
	TableBlock
	Spacer
	PageBreak
)

func (k Kind) String() string {
	switch k {
	case Heading1:
		return "heading1"
	case Heading2:
		return "heading2"
	case Heading3:
		return "heading3"
	case Heading4:
		return "heading4"
	case Paragraph:
		return "paragraph"
	case Small:
		return "small"
	case Note:
		return "note"
	case Code:
		return "code"
	case ErrorText:
		return "error"
	case TableBlock:
		return "table"
	case Spacer:
		return "spacer"
	case PageBreak:
		return "page_break"
	default:
		return "unknown"
	}
}

// Block is one layout element. Text is used by text kinds, Height by
// Spacer and Table by TableBlock.
type Block struct {
	Kind   Kind
	Text   string
	Height float64
	Table  *Table
}

// Color is an RGB color.
type Color struct {
	R, G, B uint8
}

var (
	Black                = Color{0, 0, 0}
	WhiteSmoke           = Color{245, 245, 245}
	DarkSlateBlue        = Color{72, 61, 139}
	CadetBlue            = Color{95, 158, 160}
	LightGrey            = Color{211, 211, 211}
	PaleGreen            = Color{152, 251, 152}
	LightGoldenrodYellow = Color{250, 250, 210}
	Grey                 = Color{128, 128, 128}
	DarkBlue             = Color{0, 0, 139}
	Red                  = Color{255, 0, 0}
	CodeBackground       = Color{240, 240, 240}
)

// Palette colors the header row of a table.
type Palette struct {
	HeaderFill Color
	HeaderText Color
}

// Table palettes by content source.
var (
	PropertyPalette  = Palette{HeaderFill: DarkSlateBlue, HeaderText: WhiteSmoke}
	SectionPalette   = Palette{HeaderFill: CadetBlue, HeaderText: WhiteSmoke}
	HierarchyPalette = Palette{HeaderFill: LightGrey, HeaderText: Black}
	WorkbookPalette  = Palette{HeaderFill: PaleGreen, HeaderText: Black}
)

// Table is a grid whose first row is the header row. ColWidths may be nil,
// in which case the renderer spreads the columns over the available width.
// In a transposed table HeaderColumn marks the first column as headers.
type Table struct {
	Rows         [][]string
	ColWidths    []float64
	FontSize     float64
	Palette      Palette
	HeaderColumn bool
	RepeatHeader bool
}

// Columns returns the width of the widest row.
func (t *Table) Columns() int {
	n := 0
	for _, r := range t.Rows {
		if len(r) > n {
			n = len(r)
		}
	}
	return n
}

// Document is the ordered layout of one report.
type Document struct {
	Blocks []Block
}

func (d *Document) add(blocks ...Block) {
	d.Blocks = append(d.Blocks, blocks...)
}

// Text returns the text of every text block, in order. Table cells are not included.
func (d *Document) Text() []string {
	var out []string
	for _, b := range d.Blocks {
		if b.Kind != TableBlock && b.Kind != Spacer && b.Kind != PageBreak {
			out = append(out, b.Text)
		}
	}
	return out
}

// Tables returns every table block in order.
func (d *Document) Tables() []*Table {
	var out []*Table
	for _, b := range d.Blocks {
		if b.Kind == TableBlock {
			out = append(out, b.Table)
		}
	}
	return out
}
