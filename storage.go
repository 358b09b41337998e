package tabula

import (
	"context"

	"github.com/google/uuid"
)

// DatasetManager provides dataset and data point operations behind the validation gate
type DatasetManager interface {
	// Dataset operations
	ListDatasets(ctx context.Context) ([]*Dataset, error)
	GetDataset(ctx context.Context, id uuid.UUID) (*Dataset, error)
	CreateDataset(ctx context.Context, in *DatasetInput) (*Dataset, error)
	UpdateDataset(ctx context.Context, id uuid.UUID, in *DatasetInput) (*Dataset, error)
	DeleteDataset(ctx context.Context, id uuid.UUID) error

	// Data point operations, always scoped to the owning dataset
	ListDataPoints(ctx context.Context, datasetID uuid.UUID, page, limit int) (*DataPointPage, error)
	GetDataPoint(ctx context.Context, datasetID, id uuid.UUID) (*DataPoint, error)
	CreateDataPoint(ctx context.Context, datasetID uuid.UUID, in *DataPointInput) (*DataPoint, error)
	UpdateDataPoint(ctx context.Context, datasetID, id uuid.UUID, in *DataPointInput) (*DataPoint, error)
	DeleteDataPoint(ctx context.Context, datasetID, id uuid.UUID) error
}

// Authenticator resolves credentials and session tokens to a principal.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*Principal, string, error)
	Verify(ctx context.Context, token string) (*Principal, error)
}

// RateLimiter answers whether an origin is still within its request quota.
type RateLimiter interface {
	Allow(ctx context.Context, origin string) (bool, error)
}

// ChartReader loads stored charts by name.
type ChartReader interface {
	GetChart(ctx context.Context, name string) (*Chart, error)
}

// DatasetExporter writes a snapshot of a dataset's data points to object storage.
type DatasetExporter interface {
	ExportDataset(ctx context.Context, dataset *Dataset) (*ExportResult, error)
}
