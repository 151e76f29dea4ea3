package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"elnreport/internal/eln"
	"elnreport/internal/model"
	"elnreport/internal/report"
	"elnreport/internal/repository"
	"elnreport/internal/schema"
	"elnreport/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("report not found")
	ErrArchiveDisabled = errors.New("report archive is not configured")
	ErrInvalidEncoding = fmt.Errorf("invalid xml upload: %w", eln.ErrInvalidUTF8)
)

const tracerName = "elnreport/internal/service"

// Renderer turns a laid out report into PDF bytes.
type Renderer interface {
	Render(doc *report.Document) ([]byte, error)
}

// SchemaSource yields the column mappings in effect for one conversion.
type SchemaSource interface {
	Snapshot() *schema.Snapshot
}

// ConvertResult is the outcome of a single conversion.
type ConvertResult struct {
	PDF []byte
	// ReportID is empty unless the report was archived.
	ReportID string
	// ParseError is set when the upload was not well formed XML; PDF then
	// describes the error.
	ParseError string
}

// ReportListResult is the service-level DTO for paginated reports.
type ReportListResult struct {
	Items []model.Report `json:"data"`
	Total int            `json:"total"`
}

// ConversionService defines the report use cases.
type ConversionService interface {
	// Convert builds a PDF report from an ELN XML export. When an archive is
	// configured the source and PDF are stored as well; archive failures are
	// logged and do not fail the conversion.
	Convert(ctx context.Context, filename string, xml []byte) (*ConvertResult, error)

	// List returns archived reports using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*ReportListResult, error)

	// Get returns a single archived report by its ID.
	Get(ctx context.Context, id string) (*model.Report, error)

	// OpenPDF streams the archived PDF. The caller closes the reader.
	OpenPDF(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error)

	// PresignPDF returns a time-limited download URL for the archived PDF.
	PresignPDF(ctx context.Context, id string) (string, error)

	// Delete removes an archived report from both storage and repository.
	Delete(ctx context.Context, id string) error
}

// Option configures a ConversionService.
type Option func(*conversionService)

// WithArchive stores every converted report in store and records it in repo.
func WithArchive(store storage.Storage, repo repository.ReportRepository, presignExpiry time.Duration) Option {
	return func(s *conversionService) {
		s.store = store
		s.repo = repo
		s.presignExpiry = presignExpiry
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *conversionService) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *conversionService) { s.metrics = m }
}

type conversionService struct {
	schemas       SchemaSource
	renderer      Renderer
	store         storage.Storage
	repo          repository.ReportRepository
	presignExpiry time.Duration
	logger        zerolog.Logger
	metrics       *Metrics
	now           func() time.Time
}

// NewConversionService constructs a ConversionService. Without WithArchive
// only Convert is available; the archive operations return ErrArchiveDisabled.
func NewConversionService(schemas SchemaSource, renderer Renderer, opts ...Option) ConversionService {
	s := &conversionService{
		schemas:       schemas,
		renderer:      renderer,
		presignExpiry: 15 * time.Minute,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *conversionService) archiveEnabled() bool {
	return s.store != nil && s.repo != nil
}

func (s *conversionService) Convert(ctx context.Context, filename string, xml []byte) (res *ConvertResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Convert")
	defer span.End()
	span.SetAttributes(
		attribute.String("eln.filename", filename),
		attribute.Int("eln.size", len(xml)),
	)

	start := s.now()
	defer func() {
		outcome := outcomeOK
		switch {
		case errors.Is(err, ErrInvalidEncoding):
			outcome = outcomeRejected
		case err != nil:
			outcome = outcomeFailed
		case res.ParseError != "":
			outcome = outcomeParseError
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.observeConversion(outcome, s.now().Sub(start), res)
	}()

	doc, parseErr := report.FromXML(xml, s.schemas.Snapshot())
	if errors.Is(parseErr, eln.ErrInvalidUTF8) {
		return nil, ErrInvalidEncoding
	}
	res = &ConvertResult{}
	if parseErr != nil {
		res.ParseError = parseErr.Error()
		s.logger.Warn().Err(parseErr).Str("filename", filename).Msg("xml parsing failed; rendering error report")
	}

	pdf, err := s.renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	res.PDF = pdf

	if s.archiveEnabled() {
		stored, aerr := s.archive(ctx, filename, xml, res)
		if aerr != nil {
			s.logger.Error().Err(aerr).Str("filename", filename).Msg("report archive failed")
		} else {
			res.ReportID = stored.ID
			span.SetAttributes(attribute.String("report.id", stored.ID))
		}
	}
	return res, nil
}

func (s *conversionService) archive(ctx context.Context, filename string, xml []byte, res *ConvertResult) (*model.Report, error) {
	id := uuid.New().String()
	prefix := path.Join("reports", id)
	sourceKey := path.Join(prefix, "source.xml")
	pdfKey := path.Join(prefix, "report.pdf")

	srcInfo, err := s.store.Put(ctx, sourceKey, bytes.NewReader(xml), storage.PutObjectOptions{
		Size:        int64(len(xml)),
		ContentType: "application/xml",
		Metadata:    map[string]string{"original-filename": filename},
	})
	if err != nil {
		return nil, fmt.Errorf("upload source: %w", err)
	}
	pdfInfo, err := s.store.Put(ctx, pdfKey, bytes.NewReader(res.PDF), storage.PutObjectOptions{
		Size:        int64(len(res.PDF)),
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, s.rollback(ctx, fmt.Errorf("upload pdf: %w", err), sourceKey)
	}

	r := &model.Report{
		ID:             id,
		SourceFilename: filename,
		SourcePath:     srcInfo.Key,
		PDFPath:        pdfInfo.Key,
		SourceSize:     srcInfo.Size,
		PDFSize:        pdfInfo.Size,
		ParseError:     res.ParseError,
		CreatedAt:      s.now().UTC(),
	}
	stored, err := s.repo.Create(ctx, r)
	if err != nil {
		return nil, s.rollback(ctx, fmt.Errorf("db save failed: %w", err), sourceKey, pdfKey)
	}
	return stored, nil
}

// rollback deletes keys after a failed archive step and folds any delete
// failure into cause.
func (s *conversionService) rollback(ctx context.Context, cause error, keys ...string) error {
	for _, key := range keys {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return fmt.Errorf("%v; rollback delete failed: %v", cause, delErr)
		}
	}
	return cause
}

// List returns paginated reports without exposing repository types.
func (s *conversionService) List(ctx context.Context, limit, offset int) (*ReportListResult, error) {
	if !s.archiveEnabled() {
		return nil, ErrArchiveDisabled
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &ReportListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *conversionService) Get(ctx context.Context, id string) (*model.Report, error) {
	if !s.archiveEnabled() {
		return nil, ErrArchiveDisabled
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *conversionService) OpenPDF(ctx context.Context, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	rc, info, err := s.store.Get(ctx, r.PDFPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, fmt.Errorf("open pdf: %w", err)
	}
	return rc, info, nil
}

func (s *conversionService) PresignPDF(ctx context.Context, id string) (string, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.store.PresignGet(ctx, r.PDFPath, s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign pdf: %w", err)
	}
	return url, nil
}

// Delete removes both stored objects, then deletes the record.
func (s *conversionService) Delete(ctx context.Context, id string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// Keep the row when storage fails so the objects can still be found.
	for _, key := range []string{r.PDFPath, r.SourcePath} {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}
