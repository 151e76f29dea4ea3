package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"elnreport/internal/http/middleware"
	"elnreport/internal/service"
)

const (
	// UploadField is the multipart field carrying the XML export.
	UploadField = "xmlFile"
	// PDFFilename is the attachment name of every converted report.
	PDFFilename = "converted_eln_report.pdf"
	// ReportIDHeader carries the archive ID of a converted report.
	ReportIDHeader = "X-Report-ID"

	msgNoPart      = "No XML file part"
	msgNoFile      = "No selected XML file"
	msgInvalidType = "Invalid file type. Please upload an XML file."
	msgEncoding    = "XML file is not valid UTF-8."
	msgTooLarge    = "Uploaded file is too large."
	msgInternal    = "An internal server error occurred. Please check server logs."
)

// ConvertXML converts an uploaded ELN XML export to a PDF attachment.
//
// @Summary Convert an ELN XML export to PDF
// @Tags convert
// @Accept multipart/form-data
// @Produce application/pdf
// @Param xmlFile formData file true "ELN XML export"
// @Success 200 {file} file
// @Header 200 {string} X-Report-ID "archive id, when archiving is enabled"
// @Failure 400 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /convert [post]
func ConvertXML(svc service.ConversionService, maxBytes int64, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile(UploadField)
		if err != nil {
			// A part sent without a filename is parsed as a plain form value.
			if form, ferr := c.MultipartForm(); ferr == nil {
				if _, ok := form.Value[UploadField]; ok {
					return writeError(c, fiber.StatusBadRequest, "NO_FILE_SELECTED", msgNoFile)
				}
			}
			return writeError(c, fiber.StatusBadRequest, "NO_FILE_PART", msgNoPart)
		}
		if fh.Filename == "" {
			return writeError(c, fiber.StatusBadRequest, "NO_FILE_SELECTED", msgNoFile)
		}
		if !strings.HasSuffix(fh.Filename, ".xml") {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FILE_TYPE", msgInvalidType)
		}
		if maxBytes > 0 && fh.Size > maxBytes {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msgTooLarge)
		}

		log := logger.With().Str("request_id", middleware.RequestIDFromCtx(c)).Str("filename", fh.Filename).Logger()

		data, err := readUpload(fh, maxBytes)
		if errors.Is(err, fiber.ErrRequestEntityTooLarge) {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", msgTooLarge)
		}
		if err != nil {
			log.Error().Err(err).Msg("reading upload failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}

		res, err := svc.Convert(c.UserContext(), fh.Filename, data)
		if err != nil {
			if errors.Is(err, service.ErrInvalidEncoding) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_ENCODING", msgEncoding)
			}
			log.Error().Err(err).Msg("conversion failed")
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", msgInternal)
		}
		log.Info().Int("pdf_bytes", len(res.PDF)).Str("report_id", res.ReportID).Bool("parse_error", res.ParseError != "").Msg("report converted")

		if res.ReportID != "" {
			c.Set(ReportIDHeader, res.ReportID)
		}
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, PDFFilename))
		c.Type("pdf")
		return c.Status(fiber.StatusOK).Send(res.PDF)
	}
}

func readUpload(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fiber.ErrRequestEntityTooLarge
	}
	return data, nil
}
