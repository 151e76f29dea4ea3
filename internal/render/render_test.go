package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elnreport/internal/report"
)

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(dir, "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func assertPDF(t *testing.T, b []byte) {
	t.Helper()
	require.NotEmpty(t, b)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")), "missing pdf header")
	assert.Contains(t, string(b[len(b)-16:]), "%%EOF")
}

func sampleDocument() *report.Document {
	rows := [][]string{{"Property", "Value"}}
	for i := 0; i < 120; i++ {
		rows = append(rows, []string{fmt.Sprintf("item %d", i), strings.Repeat("long value ", i%7+1)})
	}
	return &report.Document{Blocks: []report.Block{
		{Kind: report.Heading1, Text: "Report: Batch ■ 7 – µL"},
		{Kind: report.Heading2, Text: "Type: Culture"},
		{Kind: report.Spacer, Height: 7.2},
		{Kind: report.Heading3, Text: "Metadata"},
		{Kind: report.Note, Text: "Table 'Metadata' (2 columns, Normal Layout):"},
		{Kind: report.TableBlock, Table: &report.Table{
			Rows:         rows,
			ColWidths:    []float64{report.AvailableWidth / 2, report.AvailableWidth / 2},
			FontSize:     8,
			Palette:      report.PropertyPalette,
			RepeatHeader: true,
		}},
		{Kind: report.PageBreak},
		{Kind: report.Code, Text: "line one\n\tindented"},
		{Kind: report.Paragraph, Text: ""},
		{Kind: report.Small, Text: "small"},
		{Kind: report.ErrorText, Text: "error"},
	}}
}

func TestRenderWithoutLogo(t *testing.T) {
	r := New("", zerolog.Nop())
	assert.False(t, r.HasLogo())

	out, err := r.Render(sampleDocument())
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestRenderWithLogo(t *testing.T) {
	r := New(writePNG(t, t.TempDir()), zerolog.Nop())
	require.True(t, r.HasLogo())

	out, err := r.Render(sampleDocument())
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestNewLogoProblemsAreLogged(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))

	for _, path := range []string{filepath.Join(dir, "missing.png"), bad} {
		var buf bytes.Buffer
		r := New(path, zerolog.New(&buf))
		assert.False(t, r.HasLogo())
		assert.Contains(t, buf.String(), "logo not loaded")
	}
}

func TestRenderFallsBackToErrorPage(t *testing.T) {
	orig := styles[report.Small]
	broken := orig
	broken.family = "NoSuchFont"
	styles[report.Small] = broken
	t.Cleanup(func() { styles[report.Small] = orig })

	var buf bytes.Buffer
	r := New("", zerolog.New(&buf))
	out, err := r.Render(&report.Document{Blocks: []report.Block{{Kind: report.Small, Text: "x"}}})
	require.NoError(t, err)
	assertPDF(t, out)
	assert.Contains(t, buf.String(), "final pdf build failed")
}

func TestChunkTransposedTable(t *testing.T) {
	header := []string{"Field"}
	values := []string{"v"}
	for i := 0; i < 60; i++ {
		header = append(header, fmt.Sprintf("r%d", i))
		values = append(values, fmt.Sprintf("%d", i))
	}
	tbl := &report.Table{Rows: [][]string{header, values}, FontSize: 7, HeaderColumn: true}

	parts := chunk(tbl)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0].Rows[0], report.MaxNormalColumns)
	assert.Equal(t, "Field", parts[1].Rows[0][0])
	assert.Equal(t, "r24", parts[1].Rows[0][1])
	assert.Len(t, parts[2].Rows[0], 1+60-2*(report.MaxNormalColumns-1))

	normal := &report.Table{Rows: [][]string{header}}
	assert.Equal(t, []*report.Table{normal}, chunk(normal))
}

func TestRenderTransposedTable(t *testing.T) {
	rows := make([][]string, 30)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("H%d", i), "value", ""}
	}
	doc := &report.Document{Blocks: []report.Block{
		{Kind: report.TableBlock, Table: &report.Table{
			Rows:         rows,
			FontSize:     7,
			Palette:      report.WorkbookPalette,
			HeaderColumn: true,
			RepeatHeader: true,
		}},
	}}
	out, err := New("", zerolog.Nop()).Render(doc)
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestRenderLogsCharactersOutsideCoreFonts(t *testing.T) {
	doc := &report.Document{Blocks: []report.Block{
		{Kind: report.Paragraph, Text: "■ done, ≥ 5 % CO₂, €5 café"},
		{Kind: report.TableBlock, Table: &report.Table{Rows: [][]string{{"Gas"}, {"O₂"}}, FontSize: 8}},
	}}

	var buf bytes.Buffer
	out, err := New("", zerolog.New(&buf)).Render(doc)
	require.NoError(t, err)
	assertPDF(t, out)
	assert.Contains(t, buf.String(), `"characters":4`)

	buf.Reset()
	_, err = New("", zerolog.New(&buf)).Render(&report.Document{Blocks: []report.Block{
		{Kind: report.Paragraph, Text: "€5 café – µL"},
	}})
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "characters")
}

func TestUnmappable(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "plain ascii", want: 0},
		{in: "café – €5 µL", want: 0},
		{in: "■ checked", want: 1},
		{in: "≥ 37 °C, CO₂", want: 2},
		{in: "培养基", want: 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unmappable(tt.in), tt.in)
	}
}

func TestWithUnicodeFontRejected(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "font.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o600))

	for _, path := range []string{filepath.Join(dir, "missing.ttf"), bad} {
		var buf bytes.Buffer
		r := New("", zerolog.New(&buf), WithUnicodeFont(path))
		assert.False(t, r.HasUnicodeFont())
		assert.Contains(t, buf.String(), "unicode font not loaded")

		out, err := r.Render(sampleDocument())
		require.NoError(t, err)
		assertPDF(t, out)
	}

	var buf bytes.Buffer
	r := New("", zerolog.New(&buf), WithUnicodeFont(""))
	assert.False(t, r.HasUnicodeFont())
	assert.Empty(t, buf.String())
}

func TestRenderWithUnicodeFont(t *testing.T) {
	var font string
	for _, p := range []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
	} {
		if _, err := os.Stat(p); err == nil {
			font = p
			break
		}
	}
	if font == "" {
		t.Skip("no DejaVuSans.ttf on this system")
	}

	var buf bytes.Buffer
	r := New("", zerolog.New(&buf), WithUnicodeFont(font))
	require.True(t, r.HasUnicodeFont())

	doc := sampleDocument()
	doc.Blocks = append(doc.Blocks,
		report.Block{Kind: report.Paragraph, Text: "■ ≥ 37 °C, CO₂"},
		report.Block{Kind: report.TableBlock, Table: &report.Table{Rows: [][]string{{"Gas"}, {"O₂ ≥ 20 %"}}, FontSize: 8}},
	)
	out, err := r.Render(doc)
	require.NoError(t, err)
	assertPDF(t, out)
	assert.NotContains(t, buf.String(), "characters")
	assert.NotContains(t, buf.String(), "final pdf build failed")
}
