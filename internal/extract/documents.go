package extract

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// Document types of an embedded document element.
const (
	DocumentWord  = "1"
	DocumentExcel = "2"
)

// ErrNoContent is returned for an empty embedded document.
var ErrNoContent = errors.New("no content provided")

// Sheet is one worksheet of an embedded workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// DecodeBase64 decodes standard base64, ignoring embedded whitespace and
// tolerating missing padding.
func DecodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return nil, ErrNoContent
	}
	if b, err := base64.StdEncoding.DecodeString(clean); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

// Workbook reads a base64 encoded XLSX. The first row is used as headers when
// any of its cells is non-blank; otherwise Col<n> headers are generated and
// data starts on the first row. Fully blank rows are dropped. A workbook that
// cannot be read yields a single "Error" sheet describing the failure.
func Workbook(b64 string) []Sheet {
	sheets, err := readWorkbook(b64)
	if err != nil {
		return []Sheet{{
			Name:    "Error",
			Headers: []string{"Error"},
			Rows:    [][]string{{fmt.Sprintf("EXL ERR: %v", err)}},
		}}
	}
	return sheets
}

func readWorkbook(b64 string) ([]Sheet, error) {
	data, err := DecodeBase64(b64)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}

		maxCols := 0
		for _, r := range rows {
			if len(r) > maxCols {
				maxCols = len(r)
			}
		}

		headers := pad(rows[0], maxCols)
		start := 0
		if anyNonBlank(headers) {
			start = 1
		} else {
			if maxCols == 0 {
				maxCols = 1
			}
			headers = colHeaders(maxCols)
		}

		var data [][]string
		for _, r := range rows[start:] {
			if len(r) > len(headers) {
				r = r[:len(headers)]
			}
			row := pad(r, len(headers))
			if anyNonBlank(row) {
				data = append(data, row)
			}
		}
		out = append(out, Sheet{Name: name, Headers: headers, Rows: data})
	}
	return out, nil
}

func pad(r []string, n int) []string {
	out := make([]string, n)
	copy(out, r)
	return out
}

func anyNonBlank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// WordText reads a base64 encoded DOCX and returns its body paragraphs joined
// by newlines. Paragraphs nested in tables, headers or footers are not included.
func WordText(b64 string) (string, error) {
	if strings.TrimSpace(b64) == "" {
		return "", ErrNoContent
	}
	data, err := DecodeBase64(b64)
	if err != nil {
		return "", err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		defer rc.Close()
		return bodyParagraphs(rc)
	}
	return "", errors.New("docx has no word/document.xml part")
}

// bodyParagraphs collects the text of w:p elements that are direct children
// of w:body.
func bodyParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		stack   []string
		paras   []string
		current strings.Builder
		inPara  bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body" {
				inPara = true
				current.Reset()
			}
			if inPara {
				switch name {
				case "tab":
					current.WriteByte('\t')
				case "br", "cr":
					current.WriteByte('\n')
				}
			}
			stack = append(stack, name)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if t.Name.Local == "p" && inPara && len(stack) > 0 && stack[len(stack)-1] == "body" {
				paras = append(paras, current.String())
				inPara = false
			}
		case xml.CharData:
			if inPara && len(stack) > 0 && stack[len(stack)-1] == "t" {
				current.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}
