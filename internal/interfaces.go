package internal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/tabula"
)

// dbPool is the subset of pgxpool.Pool the repositories use. pgxmock pools satisfy it too.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type DatasetRepository interface {
	ListDatasets(ctx context.Context) ([]*tabula.Dataset, error)
	GetDataset(ctx context.Context, id uuid.UUID) (*tabula.Dataset, error)
	InsertDataset(ctx context.Context, dataset *tabula.Dataset) error
	UpdateDataset(ctx context.Context, dataset *tabula.Dataset) error
	// DeleteDataset removes the dataset and all of its data points atomically.
	DeleteDataset(ctx context.Context, id uuid.UUID) error
}

type DataPointRepository interface {
	// ListDataPoints returns one page, newest first, plus the total count for the dataset.
	ListDataPoints(ctx context.Context, datasetID uuid.UUID, limit, offset int) ([]*tabula.DataPoint, int64, error)
	GetDataPoint(ctx context.Context, datasetID, id uuid.UUID) (*tabula.DataPoint, error)
	InsertDataPoint(ctx context.Context, point *tabula.DataPoint) error
	UpdateDataPoint(ctx context.Context, point *tabula.DataPoint) error
	DeleteDataPoint(ctx context.Context, datasetID, id uuid.UUID) error
}

// AdminUserRepository loads administrator credentials.
type AdminUserRepository interface {
	GetAdminUser(ctx context.Context, username string) (*AdminUser, error)
	InsertAdminUser(ctx context.Context, user *AdminUser) error
}

// SchemaValidator is the validation gate used before every write.
type SchemaValidator interface {
	// ValidateSchema checks an incoming schema document and returns its normalized form.
	ValidateSchema(ctx context.Context, raw any) (tabula.StorageSchema, error)
	// ValidateData checks an incoming record and returns it as a JSON object.
	ValidateData(ctx context.Context, schema tabula.StorageSchema, raw any) (map[string]any, error)
}
