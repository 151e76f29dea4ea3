package repository

import (
	"context"

	"elnreport/internal/model"
)

// ReportRepository defines data access for archived reports using SQL queries only.
// No business logic here, strictly persistence operations.
type ReportRepository interface {
	// Create inserts a new report record and returns it as stored.
	Create(ctx context.Context, r *model.Report) (*model.Report, error)

	// FindByID returns a report by its ID. A missing row yields sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Report, error)

	// List returns a page of reports, newest first, and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Report], error)

	// Delete removes a report by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
