// Package render draws a report layout as a landscape Letter PDF.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"elnreport/internal/report"
)

const (
	logoWidth  = 0.85 * report.Inch
	logoOffset = 0.2 * report.Inch
	logoName   = "logo"

	// unicodeFamily replaces Helvetica when a TrueType font is configured.
	unicodeFamily = "unicode"

	cellPadding = 2.0
	gridWidth   = 0.5
)

// ErrFallback is returned when neither the report nor the error page could be drawn.
var ErrFallback = errors.New("could not build fallback pdf")

type logo struct {
	data      []byte
	imageType string
}

// Renderer turns report documents into PDF bytes. It is safe for
// concurrent use; every call draws into its own fpdf instance.
type Renderer struct {
	logo   *logo
	font   []byte
	logger zerolog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithUnicodeFont draws body text and tables with the TrueType font at path
// instead of the core Helvetica, which only covers Windows-1252. An empty
// path keeps the core fonts; an unreadable or invalid font is logged and
// skipped.
func WithUnicodeFont(path string) Option {
	return func(r *Renderer) {
		if path == "" {
			return
		}
		data, err := os.ReadFile(path)
		if err == nil {
			err = checkFont(data)
		}
		if err != nil {
			r.logger.Warn().Err(err).Str("path", path).Msg("unicode font not loaded; using core fonts")
			return
		}
		r.font = data
		r.logger.Info().Str("path", path).Msg("unicode font loaded")
	}
}

// checkFont registers data on a scratch document so a broken font is
// rejected once at startup rather than on every render.
func checkFont(data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse font: %v", p)
		}
	}()
	pdf := fpdf.New("L", "pt", "Letter", "")
	pdf.AddUTF8FontFromBytes(unicodeFamily, "", data)
	pdf.AddPage()
	pdf.SetFont(unicodeFamily, "", 10)
	pdf.Cell(40, 12, "■ ≥ CO₂")
	if err := pdf.Output(io.Discard); err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	return nil
}

// New returns a Renderer that stamps the image at logoPath on every page.
// An empty path disables the logo. A missing or unreadable file is logged
// and the logo is skipped.
func New(logoPath string, logger zerolog.Logger, opts ...Option) *Renderer {
	r := &Renderer{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	if logoPath == "" {
		return r
	}
	l, err := loadLogo(logoPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", logoPath).Msg("logo not loaded; pages will have no logo")
		return r
	}
	r.logo = l
	logger.Info().Str("path", logoPath).Str("type", l.imageType).Msg("logo loaded")
	return r
}

func loadLogo(path string) (*logo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read logo: %w", err)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	switch format {
	case "png":
		return &logo{data: data, imageType: "PNG"}, nil
	case "jpeg":
		return &logo{data: data, imageType: "JPG"}, nil
	default:
		return nil, fmt.Errorf("unsupported logo format %q", format)
	}
}

// HasLogo reports whether pages will carry a logo.
func (r *Renderer) HasLogo() bool {
	return r.logo != nil
}

// HasUnicodeFont reports whether text is drawn with a TrueType font.
func (r *Renderer) HasUnicodeFont() bool {
	return r.font != nil
}

// Render draws doc. If drawing fails, a single page describing the failure
// is returned instead; only when that also fails is an error returned.
func (r *Renderer) Render(doc *report.Document) ([]byte, error) {
	out, err := r.draw(doc, r.logo, r.font)
	if err == nil {
		return out, nil
	}
	r.logger.Error().Err(err).Msg("final pdf build failed; drawing error page")

	fallback := &report.Document{Blocks: []report.Block{
		{Kind: report.Heading1, Text: "FATAL ERROR: Could not build PDF."},
		{Kind: report.ErrorText, Text: err.Error()},
	}}
	out, ferr := r.draw(fallback, nil, nil)
	if ferr != nil {
		r.logger.Error().Err(ferr).Msg("error page build failed")
		return nil, fmt.Errorf("%w: %v", ErrFallback, ferr)
	}
	return out, nil
}

func (r *Renderer) draw(doc *report.Document, lg *logo, font []byte) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("pdf panic: %v", p)
		}
	}()

	pdf := fpdf.New("L", "pt", "Letter", "")
	pdf.SetMargins(report.MarginLeft, report.MarginTop, report.MarginRight)
	pdf.SetAutoPageBreak(true, report.MarginBottom)
	pdf.SetCellMargin(cellPadding)
	pdf.SetCreator("elnreport", true)

	if lg != nil {
		pdf.RegisterImageOptionsReader(logoName, fpdf.ImageOptions{ImageType: lg.imageType}, bytes.NewReader(lg.data))
		if pdf.Err() {
			r.logger.Warn().Err(pdf.Error()).Msg("logo rejected by pdf writer; skipping")
			pdf.ClearError()
		} else {
			pdf.SetHeaderFunc(func() {
				x := report.PageWidth - logoOffset - logoWidth
				pdf.ImageOptions(logoName, x, logoOffset, logoWidth, 0, false, fpdf.ImageOptions{ImageType: lg.imageType}, 0, "")
			})
		}
	}

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), core: true}
	if font != nil {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8FontFromBytes(unicodeFamily, style, font)
		}
		if pdf.Err() {
			return nil, fmt.Errorf("register font: %w", pdf.Error())
		}
		w.unicode = true
	}

	pdf.AddPage()
	for _, b := range doc.Blocks {
		w.block(b)
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}
	if n := coreReplacements(doc, w.unicode); n > 0 {
		r.logger.Warn().Int("characters", n).
			Msg("characters outside Windows-1252 drawn as '.'; set REPORT_FONT_PATH to a unicode font")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type textStyle struct {
	family  string
	style   string
	size    float64
	leading float64
	color   report.Color
	before  float64
	after   float64
}

var styles = map[report.Kind]textStyle{
	report.Heading1:  {family: "Helvetica", style: "B", size: 18, leading: 22, after: 6},
	report.Heading2:  {family: "Helvetica", style: "B", size: 14, leading: 18, before: 6, after: 4},
	report.Heading3:  {family: "Helvetica", style: "B", size: 12, leading: 14, before: 6, after: 3},
	report.Heading4:  {family: "Helvetica", style: "B", size: 10, leading: 12, color: report.DarkBlue, before: 4, after: 2},
	report.Paragraph: {family: "Helvetica", size: 10, leading: 12, after: 4},
	report.Small:     {family: "Helvetica", size: 8, leading: 10, after: 2},
	report.Note:      {family: "Helvetica", style: "I", size: 8, leading: 10, color: report.Grey, after: 2},
	report.Code:      {family: "Courier", size: 8, leading: 9.6, after: 4},
	report.ErrorText: {family: "Helvetica", size: 10, leading: 12, color: report.Red, after: 4},
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	// unicode is set when a TrueType font stands in for Helvetica.
	unicode bool
	// core is true while the current font is a Windows-1252 core font.
	core bool
}

func (w *writer) setFont(family, style string, size float64) {
	w.core = true
	if w.unicode && family == "Helvetica" {
		family = unicodeFamily
		w.core = false
	}
	w.pdf.SetFont(family, style, size)
}

func (w *writer) text(s string) string {
	s = strings.ReplaceAll(s, "\t", "    ")
	if !w.core {
		return s
	}
	return w.tr(s)
}

// coreReplacements counts the characters of doc that are drawn with a core
// font and cannot be encoded in it. Code blocks always use core Courier.
func coreReplacements(doc *report.Document, unicode bool) int {
	n := 0
	for _, b := range doc.Blocks {
		switch {
		case b.Kind == report.TableBlock && b.Table != nil:
			if unicode {
				continue
			}
			for _, row := range b.Table.Rows {
				for _, c := range row {
					n += unmappable(c)
				}
			}
		case !unicode || b.Kind == report.Code:
			n += unmappable(b.Text)
		}
	}
	return n
}

// unmappable counts the runes of s that Windows-1252 cannot encode.
func unmappable(s string) int {
	n := 0
	for _, r := range s {
		if r < utf8.RuneSelf {
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			n++
		}
	}
	return n
}

func (w *writer) setColor(c report.Color) {
	w.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}

func (w *writer) block(b report.Block) {
	pdf := w.pdf
	switch b.Kind {
	case report.Spacer:
		pdf.Ln(b.Height)
	case report.PageBreak:
		pdf.AddPage()
	case report.TableBlock:
		if b.Table != nil {
			w.table(b.Table)
			pdf.Ln(4)
		}
	default:
		st, ok := styles[b.Kind]
		if !ok {
			st = styles[report.Paragraph]
		}
		pdf.Ln(st.before)
		w.setFont(st.family, st.style, st.size)
		w.setColor(st.color)
		fill := false
		if b.Kind == report.Code {
			bg := report.CodeBackground
			pdf.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
			fill = true
		}
		pdf.SetX(report.MarginLeft)
		pdf.MultiCell(report.AvailableWidth, st.leading, w.text(b.Text), "", "L", fill)
		pdf.Ln(st.after)
		w.setColor(report.Black)
	}
}
