package postgres

import (
	"context"
	"database/sql"

	"elnreport/internal/model"
	"elnreport/internal/repository"
)

// ReportPostgres is a PostgreSQL implementation of repository.ReportRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ReportPostgres struct {
	db *sql.DB
}

// NewReportPostgres creates a new ReportPostgres repository.
func NewReportPostgres(db *sql.DB) *ReportPostgres {
	return &ReportPostgres{db: db}
}

var _ repository.ReportRepository = (*ReportPostgres)(nil)

const reportColumns = `id, source_filename, source_path, pdf_path, source_size, pdf_size, parse_error, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*model.Report, error) {
	var (
		r          model.Report
		parseError sql.NullString
	)
	if err := s.Scan(
		&r.ID,
		&r.SourceFilename,
		&r.SourcePath,
		&r.PDFPath,
		&r.SourceSize,
		&r.PDFSize,
		&parseError,
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.ParseError = parseError.String
	return &r, nil
}

// Create inserts a new report row and returns the stored record.
func (p *ReportPostgres) Create(ctx context.Context, r *model.Report) (*model.Report, error) {
	const q = `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING ` + reportColumns
	row := p.db.QueryRowContext(ctx, q,
		r.ID,
		r.SourceFilename,
		r.SourcePath,
		r.PDFPath,
		r.SourceSize,
		r.PDFSize,
		r.ParseError,
		r.CreatedAt,
	)
	return scanReport(row)
}

// FindByID fetches a single report by its ID.
func (p *ReportPostgres) FindByID(ctx context.Context, id string) (*model.Report, error) {
	const q = `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE id = $1
	`
	return scanReport(p.db.QueryRowContext(ctx, q, id))
}

// List returns reports using LIMIT/OFFSET pagination and a total count.
func (p *ReportPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Report], error) {
	const qCount = `SELECT COUNT(*) FROM reports`
	var total int
	if err := p.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + reportColumns + `
		FROM reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := p.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Report]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a report by ID. It does not return an error if the row does not exist.
func (p *ReportPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM reports WHERE id = $1`
	_, err := p.db.ExecContext(ctx, q, id)
	return err
}
