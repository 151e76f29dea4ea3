package render

import (
	"elnreport/internal/report"
)

const autoColumnShare = 1.0 / 3

// chunk splits a transposed table wider than the page allows into several
// tables, each repeating the header column.
func chunk(t *report.Table) []*report.Table {
	cols := t.Columns()
	if !t.HeaderColumn || cols <= report.MaxNormalColumns {
		return []*report.Table{t}
	}
	per := report.MaxNormalColumns - 1
	var out []*report.Table
	for start := 1; start < cols; start += per {
		end := start + per
		if end > cols {
			end = cols
		}
		rows := make([][]string, len(t.Rows))
		for i, r := range t.Rows {
			row := []string{cell(r, 0)}
			for c := start; c < end; c++ {
				row = append(row, cell(r, c))
			}
			rows[i] = row
		}
		part := *t
		part.Rows = rows
		part.ColWidths = nil
		out = append(out, &part)
	}
	return out
}

func cell(r []string, i int) string {
	if i < len(r) {
		return r[i]
	}
	return ""
}

func (w *writer) isHeader(t *report.Table, row, col int) bool {
	return row == 0 || (t.HeaderColumn && col == 0)
}

func (w *writer) cellFont(t *report.Table, row, col int) {
	style := ""
	if w.isHeader(t, row, col) {
		style = "B"
	}
	w.setFont("Helvetica", style, t.FontSize)
}

// widths returns the table's column widths, sizing columns to their content
// when none were laid out.
func (w *writer) widths(t *report.Table) []float64 {
	cols := t.Columns()
	if len(t.ColWidths) == cols {
		return t.ColWidths
	}
	out := make([]float64, cols)
	limit := report.AvailableWidth * autoColumnShare
	total := 0.0
	for c := 0; c < cols; c++ {
		best := report.MinColumnWidth
		for r, row := range t.Rows {
			w.cellFont(t, r, c)
			cw := w.pdf.GetStringWidth(w.text(cell(row, c))) + 2*cellPadding + 1
			if cw > best {
				best = cw
			}
		}
		if best > limit {
			best = limit
		}
		out[c] = best
		total += best
	}
	if total > report.AvailableWidth {
		scale := report.AvailableWidth / total
		for i := range out {
			out[i] *= scale
		}
	}
	return out
}

type tableRow struct {
	lines  [][][]byte
	height float64
}

func (w *writer) layoutRow(t *report.Table, r int, widths []float64) tableRow {
	leading := t.FontSize + 2
	row := tableRow{lines: make([][][]byte, len(widths))}
	maxLines := 1
	for c := range widths {
		w.cellFont(t, r, c)
		lines := w.splitLines(w.text(cell(t.Rows[r], c)), widths[c])
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
		row.lines[c] = lines
	}
	row.height = float64(maxLines)*leading + 2*cellPadding
	return row
}

// splitLines wraps s to width. SplitLines measures bytes, which only holds
// for the single-byte core fonts.
func (w *writer) splitLines(s string, width float64) [][]byte {
	if w.core {
		return w.pdf.SplitLines([]byte(s), width)
	}
	var out [][]byte
	for _, l := range w.pdf.SplitText(s, width) {
		out = append(out, []byte(l))
	}
	return out
}

func (w *writer) fillFor(t *report.Table, r, c int) (report.Color, bool) {
	switch {
	case r == 0:
		return t.Palette.HeaderFill, true
	case t.HeaderColumn && c == 0:
		return report.LightGoldenrodYellow, true
	default:
		return report.Color{}, false
	}
}

func (w *writer) drawRow(t *report.Table, r int, row tableRow, widths []float64) {
	pdf := w.pdf
	leading := t.FontSize + 2
	x := report.MarginLeft
	y := pdf.GetY()

	pdf.SetLineWidth(gridWidth)
	pdf.SetDrawColor(int(report.Grey.R), int(report.Grey.G), int(report.Grey.B))
	for c, cw := range widths {
		style := "D"
		if fill, ok := w.fillFor(t, r, c); ok {
			pdf.SetFillColor(int(fill.R), int(fill.G), int(fill.B))
			style = "FD"
		}
		pdf.Rect(x, y, cw, row.height, style)

		w.cellFont(t, r, c)
		if r == 0 {
			w.setColor(t.Palette.HeaderText)
		} else {
			w.setColor(report.Black)
		}
		for i, line := range row.lines[c] {
			baseline := y + cellPadding + float64(i)*leading + t.FontSize
			pdf.Text(x+cellPadding, baseline, string(line))
		}
		x += cw
	}
	w.setColor(report.Black)
	pdf.SetXY(report.MarginLeft, y+row.height)
}

func (w *writer) table(t *report.Table) {
	for _, part := range chunk(t) {
		w.tablePart(part)
	}
}

func (w *writer) tablePart(t *report.Table) {
	if len(t.Rows) == 0 {
		return
	}
	pdf := w.pdf
	widths := w.widths(t)
	_, pageHeight := pdf.GetPageSize()
	bottom := pageHeight - report.MarginBottom

	header := w.layoutRow(t, 0, widths)
	for r := range t.Rows {
		row := header
		if r > 0 {
			row = w.layoutRow(t, r, widths)
		}
		if pdf.GetY()+row.height > bottom && pdf.GetY() > report.MarginTop {
			pdf.AddPage()
			if r > 0 && t.RepeatHeader {
				w.drawRow(t, 0, header, widths)
			}
		}
		w.drawRow(t, r, row, widths)
	}
}
