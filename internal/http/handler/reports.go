package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"elnreport/internal/service"
)

// serviceError maps service sentinels to responses.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrArchiveDisabled):
		return writeError(c, fiber.StatusNotFound, "ARCHIVE_DISABLED", "report archive is not enabled")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "report not found")
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id is required")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func reportID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// ListReports lists archived reports, newest first.
//
// @Summary List archived reports
// @Tags reports
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset" default(0)
// @Success 200 {object} service.ReportListResult
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /reports [get]
func ListReports(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetReport returns the metadata of one archived report.
//
// @Summary Get an archived report
// @Tags reports
// @Produce json
// @Param id path string true "report id"
// @Success 200 {object} model.Report
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /reports/{id} [get]
func GetReport(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := reportID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		r, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(r)
	}
}

// DownloadReportPDF streams an archived PDF.
//
// @Summary Download an archived PDF
// @Tags reports
// @Produce application/pdf
// @Param id path string true "report id"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Router /reports/{id}/pdf [get]
func DownloadReportPDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := reportID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		rc, info, err := svc.OpenPDF(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+PDFFilename+`"`)
		c.Type("pdf")
		size := -1
		if info.Size > 0 {
			size = int(info.Size)
		}
		// fasthttp closes rc once the body is written.
		return c.SendStream(rc, size)
	}
}

// PresignReportPDF returns a time-limited download URL for an archived PDF.
//
// @Summary Presigned download URL
// @Tags reports
// @Produce json
// @Param id path string true "report id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorPayload
// @Router /reports/{id}/url [get]
func PresignReportPDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := reportID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.PresignPDF(c.UserContext(), id)
		if err != nil {
			return serviceError(c, err)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}

// DeleteReport removes an archived report.
//
// @Summary Delete an archived report
// @Tags reports
// @Param id path string true "report id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /reports/{id} [delete]
func DeleteReport(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := reportID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return serviceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
