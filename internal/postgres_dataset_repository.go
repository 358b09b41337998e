package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

type PostgresDatasetRepository struct {
	pool            dbPool
	datasetsTable   string
	dataPointsTable string
}

func NewPostgresDatasetRepository(pool dbPool, tables tabula.TableNames) *PostgresDatasetRepository {
	return &PostgresDatasetRepository{
		pool:            pool,
		datasetsTable:   sanitizeIdentifier(tables.Datasets),
		dataPointsTable: sanitizeIdentifier(tables.DataPoints),
	}
}

func (r *PostgresDatasetRepository) ListDatasets(ctx context.Context) ([]*tabula.Dataset, error) {
	query := fmt.Sprintf(
		`SELECT id, name, COALESCE(description, ''), schema, created_at, updated_at
			FROM %s ORDER BY created_at DESC, id DESC`,
		r.datasetsTable,
	)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*tabula.Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return datasets, nil
}

func (r *PostgresDatasetRepository) GetDataset(ctx context.Context, id uuid.UUID) (*tabula.Dataset, error) {
	query := fmt.Sprintf(
		`SELECT id, name, COALESCE(description, ''), schema, created_at, updated_at
			FROM %s WHERE id = $1`,
		r.datasetsTable,
	)

	ds, err := scanDataset(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, tabula.NewDatasetNotFoundError(id.String())
		}
		return nil, err
	}
	return ds, nil
}

func (r *PostgresDatasetRepository) InsertDataset(ctx context.Context, dataset *tabula.Dataset) error {
	if dataset == nil {
		return fmt.Errorf("dataset cannot be nil")
	}
	schemaJSON, err := json.Marshal(dataset.Schema)
	if err != nil {
		return fmt.Errorf("marshal dataset schema: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, name, description, schema)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			RETURNING created_at, updated_at`,
		r.datasetsTable,
	)

	if err := r.pool.QueryRow(ctx, query, dataset.ID, dataset.Name, dataset.Description, schemaJSON).
		Scan(&dataset.CreatedAt, &dataset.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return tabula.NewConflictError(dataset.Name)
		}
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

func (r *PostgresDatasetRepository) UpdateDataset(ctx context.Context, dataset *tabula.Dataset) error {
	if dataset == nil {
		return fmt.Errorf("dataset cannot be nil")
	}
	schemaJSON, err := json.Marshal(dataset.Schema)
	if err != nil {
		return fmt.Errorf("marshal dataset schema: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET name = $2, description = NULLIF($3, ''), schema = $4, updated_at = now()
			WHERE id = $1
			RETURNING created_at, updated_at`,
		r.datasetsTable,
	)

	if err := r.pool.QueryRow(ctx, query, dataset.ID, dataset.Name, dataset.Description, schemaJSON).
		Scan(&dataset.CreatedAt, &dataset.UpdatedAt); err != nil {
		if isNoRows(err) {
			return tabula.NewDatasetNotFoundError(dataset.ID.String())
		}
		if isUniqueViolation(err) {
			return tabula.NewConflictError(dataset.Name)
		}
		return fmt.Errorf("update dataset: %w", err)
	}
	return nil
}

func (r *PostgresDatasetRepository) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	children, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = $1`, r.dataPointsTable), id)
	if err != nil {
		return fmt.Errorf("delete data points: %w", err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.datasetsTable), id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tabula.NewDatasetNotFoundError(id.String())
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	zap.S().Debugw("dataset deleted", "datasetID", id, "dataPoints", children.RowsAffected())
	return nil
}

func scanDataset(row pgx.Row) (*tabula.Dataset, error) {
	var (
		ds         tabula.Dataset
		schemaJSON []byte
	)
	if err := row.Scan(&ds.ID, &ds.Name, &ds.Description, &schemaJSON, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	if err := json.Unmarshal(schemaJSON, &ds.Schema); err != nil {
		return nil, fmt.Errorf("decode schema of dataset %s: %w", ds.ID, err)
	}
	ds.CreatedAt = ds.CreatedAt.UTC()
	ds.UpdatedAt = ds.UpdatedAt.UTC()
	return &ds, nil
}

var _ DatasetRepository = (*PostgresDatasetRepository)(nil)
