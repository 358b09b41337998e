package internal

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/tabula"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTables = tabula.TableNames{Datasets: "datasets", DataPoints: "data_points", AdminUsers: "admin_users", Charts: "charts"}

func pricesStorageSchema() tabula.StorageSchema {
	return tabula.Schema{Fields: []tabula.Field{
		{Name: "product", Type: tabula.FieldTypeString, Required: true},
		{Name: "amount", Type: tabula.FieldTypeNumber, Required: true},
		{Name: "tags", Type: tabula.FieldTypeArray},
	}}.ToStorageShape()
}

func datasetColumns() []string {
	return []string{"id", "name", "description", "schema", "created_at", "updated_at"}
}

func TestListDatasetsWithMockPool(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresDatasetRepository(mock, testTables)

	newer := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	older := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	t1 := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	schemaJSON := []byte(`{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"}},"required":[]}`)

	rows := pgxmock.NewRows(datasetColumns()).
		AddRow(newer, "Prices", "Retail prices", schemaJSON, t1, t1).
		AddRow(older, "Jobs", "", schemaJSON, t0, t0)
	mock.ExpectQuery(`^SELECT id, name, COALESCE\(description, ''\), schema, created_at, updated_at\s+FROM "datasets" ORDER BY created_at DESC`).
		WillReturnRows(rows)

	datasets, err := repo.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, newer, datasets[0].ID)
	assert.Equal(t, "Retail prices", datasets[0].Description)
	assert.Equal(t, "zeta", datasets[0].Schema.Properties[0].Name)
	assert.Equal(t, "alpha", datasets[0].Schema.Properties[1].Name)
	assert.Equal(t, "Jobs", datasets[1].Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDatasetsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`^SELECT id, name`).WillReturnRows(pgxmock.NewRows(datasetColumns()))

	datasets, err := NewPostgresDatasetRepository(mock, testTables).ListDatasets(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, datasets)
	assert.Empty(t, datasets)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatasetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	mock.ExpectQuery(`FROM "datasets" WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgresDatasetRepository(mock, testTables).GetDataset(context.Background(), id)
	require.Error(t, err)
	assert.True(t, tabula.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDatasetWithMockPool(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresDatasetRepository(mock, testTables)
	created := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	ds := &tabula.Dataset{
		ID:     uuid.MustParse("44444444-4444-4444-4444-444444444444"),
		Name:   "Prices",
		Schema: pricesStorageSchema(),
	}
	schemaJSON, err := json.Marshal(ds.Schema)
	require.NoError(t, err)

	mock.ExpectQuery("^" + regexp.QuoteMeta(`INSERT INTO "datasets" (id, name, description, schema)`)).
		WithArgs(ds.ID, "Prices", "", schemaJSON).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	require.NoError(t, repo.InsertDataset(ctx, ds))
	assert.Equal(t, created, ds.CreatedAt)
	assert.Equal(t, created, ds.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDatasetDuplicateName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`^INSERT INTO "datasets"`).
		WithArgs(pgxmock.AnyArg(), "Prices", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "datasets_name_key"})

	ds := &tabula.Dataset{ID: uuid.New(), Name: "Prices", Schema: pricesStorageSchema()}
	err = NewPostgresDatasetRepository(mock, testTables).InsertDataset(context.Background(), ds)
	require.Error(t, err)
	assert.True(t, tabula.IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDatasetOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		assert func(t *testing.T, err error)
	}{
		{
			name: "missing",
			err:  pgx.ErrNoRows,
			assert: func(t *testing.T, err error) {
				assert.True(t, tabula.IsNotFound(err))
			},
		},
		{
			name: "name taken",
			err:  &pgconn.PgError{Code: "23505"},
			assert: func(t *testing.T, err error) {
				assert.True(t, tabula.IsConflict(err))
			},
		},
		{
			name: "driver failure",
			err:  errors.New("connection reset"),
			assert: func(t *testing.T, err error) {
				assert.Equal(t, tabula.ErrorTypeInternal, tabula.ErrorTypeOf(err))
				assert.Contains(t, err.Error(), "update dataset")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			ds := &tabula.Dataset{ID: uuid.New(), Name: "Prices", Schema: pricesStorageSchema()}
			mock.ExpectQuery(`^UPDATE "datasets" SET name = \$2`).
				WithArgs(ds.ID, "Prices", "", pgxmock.AnyArg()).
				WillReturnError(tt.err)

			err = NewPostgresDatasetRepository(mock, testTables).UpdateDataset(context.Background(), ds)
			require.Error(t, err)
			tt.assert(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteDatasetCascades(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	id := uuid.MustParse("55555555-5555-5555-5555-555555555555")

	mock.ExpectBegin()
	mock.ExpectExec("^" + regexp.QuoteMeta(`DELETE FROM "data_points" WHERE dataset_id = $1`) + "$").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("^" + regexp.QuoteMeta(`DELETE FROM "datasets" WHERE id = $1`) + "$").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, NewPostgresDatasetRepository(mock, testTables).DeleteDataset(ctx, id))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDatasetNotFoundRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM "data_points"`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`^DELETE FROM "datasets"`).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err = NewPostgresDatasetRepository(mock, testTables).DeleteDataset(context.Background(), id)
	require.Error(t, err)
	assert.True(t, tabula.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDatasetChildFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.MatchExpectationsInOrder(true)

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(`^DELETE FROM "data_points"`).WithArgs(id).WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err = NewPostgresDatasetRepository(mock, testTables).DeleteDataset(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete data points")
	require.NoError(t, mock.ExpectationsWereMet())
}
