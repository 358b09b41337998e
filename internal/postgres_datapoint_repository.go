package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tabula"
)

type PostgresDataPointRepository struct {
	pool            dbPool
	datasetsTable   string
	dataPointsTable string
}

func NewPostgresDataPointRepository(pool dbPool, tables tabula.TableNames) *PostgresDataPointRepository {
	return &PostgresDataPointRepository{
		pool:            pool,
		datasetsTable:   sanitizeIdentifier(tables.Datasets),
		dataPointsTable: sanitizeIdentifier(tables.DataPoints),
	}
}

// ListDataPoints reads the existence check, the count and the page from one snapshot.
func (r *PostgresDataPointRepository) ListDataPoints(ctx context.Context, datasetID uuid.UUID, limit, offset int) ([]*tabula.DataPoint, int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.datasetsTable)
	if err := tx.QueryRow(ctx, existsQuery, datasetID).Scan(&exists); err != nil {
		return nil, 0, fmt.Errorf("check dataset: %w", err)
	}
	if !exists {
		return nil, 0, tabula.NewDatasetNotFoundError(datasetID.String())
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE dataset_id = $1`, r.dataPointsTable)
	if err := tx.QueryRow(ctx, countQuery, datasetID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count data points: %w", err)
	}

	pageQuery := fmt.Sprintf(
		`SELECT id, dataset_id, data, created_at, updated_at
			FROM %s WHERE dataset_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2 OFFSET $3`,
		r.dataPointsTable,
	)
	rows, err := tx.Query(ctx, pageQuery, datasetID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query data points: %w", err)
	}
	points := make([]*tabula.DataPoint, 0, limit)
	for rows.Next() {
		p, err := scanDataPoint(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		points = append(points, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate data points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return points, total, nil
}

func (r *PostgresDataPointRepository) GetDataPoint(ctx context.Context, datasetID, id uuid.UUID) (*tabula.DataPoint, error) {
	query := fmt.Sprintf(
		`SELECT id, dataset_id, data, created_at, updated_at
			FROM %s WHERE id = $1 AND dataset_id = $2`,
		r.dataPointsTable,
	)

	p, err := scanDataPoint(r.pool.QueryRow(ctx, query, id, datasetID))
	if err != nil {
		if isNoRows(err) {
			return nil, tabula.NewDataPointNotFoundError(id.String())
		}
		return nil, err
	}
	return p, nil
}

// InsertDataPoint inserts only while the owning dataset exists.
func (r *PostgresDataPointRepository) InsertDataPoint(ctx context.Context, point *tabula.DataPoint) error {
	if point == nil {
		return fmt.Errorf("data point cannot be nil")
	}
	dataJSON, err := json.Marshal(point.Data)
	if err != nil {
		return fmt.Errorf("marshal data point: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, dataset_id, data)
			SELECT $1::uuid, d.id, $3::jsonb FROM %s d WHERE d.id = $2
			RETURNING created_at, updated_at`,
		r.dataPointsTable, r.datasetsTable,
	)

	if err := r.pool.QueryRow(ctx, query, point.ID, point.DatasetID, dataJSON).
		Scan(&point.CreatedAt, &point.UpdatedAt); err != nil {
		if isNoRows(err) {
			return tabula.NewDatasetNotFoundError(point.DatasetID.String())
		}
		return fmt.Errorf("insert data point: %w", err)
	}
	return nil
}

func (r *PostgresDataPointRepository) UpdateDataPoint(ctx context.Context, point *tabula.DataPoint) error {
	if point == nil {
		return fmt.Errorf("data point cannot be nil")
	}
	dataJSON, err := json.Marshal(point.Data)
	if err != nil {
		return fmt.Errorf("marshal data point: %w", err)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET data = $3, updated_at = now()
			WHERE id = $1 AND dataset_id = $2
			RETURNING created_at, updated_at`,
		r.dataPointsTable,
	)

	if err := r.pool.QueryRow(ctx, query, point.ID, point.DatasetID, dataJSON).
		Scan(&point.CreatedAt, &point.UpdatedAt); err != nil {
		if isNoRows(err) {
			return tabula.NewDataPointNotFoundError(point.ID.String())
		}
		return fmt.Errorf("update data point: %w", err)
	}
	return nil
}

func (r *PostgresDataPointRepository) DeleteDataPoint(ctx context.Context, datasetID, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND dataset_id = $2`, r.dataPointsTable)

	tag, err := r.pool.Exec(ctx, query, id, datasetID)
	if err != nil {
		return fmt.Errorf("delete data point: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tabula.NewDataPointNotFoundError(id.String())
	}
	return nil
}

func scanDataPoint(row pgx.Row) (*tabula.DataPoint, error) {
	var (
		p        tabula.DataPoint
		dataJSON []byte
	)
	if err := row.Scan(&p.ID, &p.DatasetID, &dataJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan data point: %w", err)
	}
	if err := json.Unmarshal(dataJSON, &p.Data); err != nil {
		return nil, fmt.Errorf("decode data of data point %s: %w", p.ID, err)
	}
	if p.Data == nil {
		p.Data = map[string]any{}
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

var _ DataPointRepository = (*PostgresDataPointRepository)(nil)
