package model

import "time"

// Report is an archived conversion: the uploaded ELN export and the PDF
// generated from it. Both files live in object storage; this record points
// at them. It carries no database-specific tags.
type Report struct {
	ID             string    `json:"id"`
	SourceFilename string    `json:"source_filename"`
	SourcePath     string    `json:"source_path"`
	PDFPath        string    `json:"pdf_path"`
	SourceSize     int64     `json:"source_size"`
	PDFSize        int64     `json:"pdf_size"`
	ParseError     string    `json:"parse_error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
