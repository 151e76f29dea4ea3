package report

import (
	"fmt"
	"strings"
)

// MaxNormalColumns is the widest table laid out with one column per field.
// Wider tables are transposed.
const MaxNormalColumns = 25

const transposedFontSize = 7

func isBlankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// normalFontSize shrinks the cell font as columns are added.
func normalFontSize(cols int) float64 {
	switch {
	case cols > 18:
		return 6
	case cols > 10:
		return 7
	default:
		return 8
	}
}

// columnWidths splits the available width evenly, keeping each column at
// least MinColumnWidth wide and scaling down if that overflows.
func columnWidths(cols int, available float64) []float64 {
	if cols <= 0 {
		return nil
	}
	w := available / float64(cols)
	if w < MinColumnWidth {
		w = MinColumnWidth
	}
	widths := make([]float64, cols)
	total := 0.0
	for i := range widths {
		widths[i] = w
		total += w
	}
	if total > available && total > 0.01 {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

// transpose turns rows into columns. Rows are cut to the shortest row.
func transpose(rows [][]string) [][]string {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	for _, r := range rows[1:] {
		if len(r) < width {
			width = len(r)
		}
	}
	out := make([][]string, width)
	for c := 0; c < width; c++ {
		out[c] = make([]string, len(rows))
		for r := range rows {
			out[c][r] = rows[r][c]
		}
	}
	return out
}

// LayoutTable lays out one named table. Tables up to MaxNormalColumns wide
// keep their orientation with evenly split columns; wider ones are
// transposed so every field becomes a row. It returns nil when there is
// nothing to show.
func LayoutTable(name string, headers []string, rows [][]string, palette Palette) []Block {
	cols := len(headers)
	if cols == 0 {
		if len(rows) == 0 || len(rows[0]) == 0 {
			return nil
		}
		cols = len(rows[0])
		headers = make([]string, cols)
		for i := range headers {
			headers[i] = " "
		}
	}

	data := make([][]string, 0, len(rows)+1)
	data = append(data, headers)
	data = append(data, rows...)
	if len(data) == 1 && isBlankRow(data[0]) {
		return nil
	}

	if cols <= MaxNormalColumns {
		plural := "s"
		if cols == 1 {
			plural = ""
		}
		return []Block{
			{Kind: Note, Text: fmt.Sprintf("Table '%s' (%d column%s, Normal Layout):", name, cols, plural)},
			{Kind: TableBlock, Table: &Table{
				Rows:         data,
				ColWidths:    columnWidths(cols, AvailableWidth),
				FontSize:     normalFontSize(cols),
				Palette:      palette,
				RepeatHeader: len(data) > 1,
			}},
		}
	}

	if isBlankRow(data[0]) {
		return nil
	}
	transposed := transpose(data)
	if len(transposed) == 0 || len(transposed[0]) == 0 {
		return nil
	}
	return []Block{
		{Kind: Note, Text: fmt.Sprintf("Table '%s' (Vertical Layout):", name)},
		{Kind: TableBlock, Table: &Table{
			Rows:         transposed,
			FontSize:     transposedFontSize,
			Palette:      palette,
			HeaderColumn: true,
			RepeatHeader: len(transposed) > 1,
		}},
	}
}
