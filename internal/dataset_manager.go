package internal

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

type datasetManager struct {
	datasets   DatasetRepository
	dataPoints DataPointRepository
	validator  SchemaValidator
	config     *tabula.Config
	newID      func() (uuid.UUID, error)
}

// NewDatasetManager creates a new DatasetManager instance
func NewDatasetManager(
	datasets DatasetRepository,
	dataPoints DataPointRepository,
	validator SchemaValidator,
	config *tabula.Config,
) tabula.DatasetManager {
	if config == nil {
		config = tabula.DefaultConfig()
	}
	if validator == nil {
		validator = NewSchemaValidator(config.Validation)
	}
	return &datasetManager{
		datasets:   datasets,
		dataPoints: dataPoints,
		validator:  validator,
		config:     config,
		newID:      uuid.NewV7,
	}
}

func (m *datasetManager) ListDatasets(ctx context.Context) (_ []*tabula.Dataset, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "list_datasets", started, err) }()

	datasets, err := m.datasets.ListDatasets(ctx)
	if err != nil {
		return nil, internalError("list datasets", err)
	}
	return datasets, nil
}

func (m *datasetManager) GetDataset(ctx context.Context, id uuid.UUID) (*tabula.Dataset, error) {
	ds, err := m.datasets.GetDataset(ctx, id)
	if err != nil {
		return nil, internalError("get dataset", err)
	}
	return ds, nil
}

func (m *datasetManager) CreateDataset(ctx context.Context, in *tabula.DatasetInput) (_ *tabula.Dataset, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "create_dataset", started, err) }()

	ds, err := m.datasetFromInput(ctx, in)
	if err != nil {
		return nil, err
	}
	if ds.ID, err = m.newID(); err != nil {
		return nil, internalError("generate dataset id", err)
	}

	if err := m.datasets.InsertDataset(ctx, ds); err != nil {
		return nil, internalError("create dataset", err)
	}
	zap.S().Infow("dataset created", "datasetID", ds.ID, "name", ds.Name, "fields", len(ds.Schema.Properties))
	return ds, nil
}

func (m *datasetManager) UpdateDataset(ctx context.Context, id uuid.UUID, in *tabula.DatasetInput) (_ *tabula.Dataset, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "update_dataset", started, err) }()

	ds, err := m.datasetFromInput(ctx, in)
	if err != nil {
		return nil, err
	}
	ds.ID = id

	if err := m.datasets.UpdateDataset(ctx, ds); err != nil {
		return nil, internalError("update dataset", err)
	}
	zap.S().Infow("dataset updated", "datasetID", ds.ID, "name", ds.Name)
	return ds, nil
}

func (m *datasetManager) DeleteDataset(ctx context.Context, id uuid.UUID) (err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "delete_dataset", started, err) }()

	if err := m.datasets.DeleteDataset(ctx, id); err != nil {
		return internalError("delete dataset", err)
	}
	zap.S().Infow("dataset deleted", "datasetID", id)
	return nil
}

func (m *datasetManager) ListDataPoints(ctx context.Context, datasetID uuid.UUID, page, limit int) (_ *tabula.DataPointPage, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "list_data_points", started, err) }()

	page, limit = normalizePagination(page, limit, m.config.Query.DefaultPageSize, m.config.Query.MaxPageSize)
	offset := (page - 1) * limit

	points, total, err := m.dataPoints.ListDataPoints(ctx, datasetID, limit, offset)
	if err != nil {
		return nil, internalError("list data points", err)
	}
	return &tabula.DataPointPage{
		Data: points,
		Pagination: tabula.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages(total, limit),
		},
	}, nil
}

func (m *datasetManager) GetDataPoint(ctx context.Context, datasetID, id uuid.UUID) (*tabula.DataPoint, error) {
	p, err := m.dataPoints.GetDataPoint(ctx, datasetID, id)
	if err != nil {
		return nil, internalError("get data point", err)
	}
	return p, nil
}

func (m *datasetManager) CreateDataPoint(ctx context.Context, datasetID uuid.UUID, in *tabula.DataPointInput) (_ *tabula.DataPoint, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "create_data_point", started, err) }()

	data, err := m.validateData(ctx, datasetID, in)
	if err != nil {
		return nil, err
	}

	id, err := m.newID()
	if err != nil {
		return nil, internalError("generate data point id", err)
	}
	point := &tabula.DataPoint{ID: id, DatasetID: datasetID, Data: data}
	if err := m.dataPoints.InsertDataPoint(ctx, point); err != nil {
		return nil, internalError("create data point", err)
	}
	zap.S().Debugw("data point created", "datasetID", datasetID, "dataPointID", id)
	return point, nil
}

func (m *datasetManager) UpdateDataPoint(ctx context.Context, datasetID, id uuid.UUID, in *tabula.DataPointInput) (_ *tabula.DataPoint, err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "update_data_point", started, err) }()

	data, err := m.validateData(ctx, datasetID, in)
	if err != nil {
		return nil, err
	}

	point := &tabula.DataPoint{ID: id, DatasetID: datasetID, Data: data}
	if err := m.dataPoints.UpdateDataPoint(ctx, point); err != nil {
		return nil, internalError("update data point", err)
	}
	zap.S().Debugw("data point updated", "datasetID", datasetID, "dataPointID", id)
	return point, nil
}

func (m *datasetManager) DeleteDataPoint(ctx context.Context, datasetID, id uuid.UUID) (err error) {
	started := time.Now()
	defer func() { EmitLatency(ctx, "delete_data_point", started, err) }()

	if err := m.dataPoints.DeleteDataPoint(ctx, datasetID, id); err != nil {
		return internalError("delete data point", err)
	}
	zap.S().Debugw("data point deleted", "datasetID", datasetID, "dataPointID", id)
	return nil
}

func (m *datasetManager) datasetFromInput(ctx context.Context, in *tabula.DatasetInput) (*tabula.Dataset, error) {
	if in == nil || strings.TrimSpace(in.Name) == "" || in.Schema == nil {
		return nil, tabula.NewValidationError("name", "Name and schema are required")
	}
	schema, err := m.validator.ValidateSchema(ctx, in.Schema)
	if err != nil {
		return nil, err
	}
	return &tabula.Dataset{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Schema:      schema,
	}, nil
}

// validateData loads the owning dataset first so a missing dataset is reported
// before any data problem.
func (m *datasetManager) validateData(ctx context.Context, datasetID uuid.UUID, in *tabula.DataPointInput) (map[string]any, error) {
	if in == nil || in.Data == nil {
		return nil, tabula.NewValidationError("data", "Data is required")
	}
	ds, err := m.datasets.GetDataset(ctx, datasetID)
	if err != nil {
		return nil, internalError("get dataset", err)
	}
	return m.validator.ValidateData(ctx, ds.Schema, in.Data)
}

// internalError passes typed errors through and wraps everything else.
func internalError(op string, err error) error {
	var typed *tabula.Error
	if errors.As(err, &typed) {
		return err
	}
	zap.S().Errorw("dataset operation failed", "op", op, "error", err)
	return tabula.NewInternalError(op+" failed", err)
}
