package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lychee-technology/tabula"
)

type PostgresChartRepository struct {
	pool  dbPool
	table string
}

func NewPostgresChartRepository(pool dbPool, tables tabula.TableNames) *PostgresChartRepository {
	return &PostgresChartRepository{pool: pool, table: sanitizeIdentifier(tables.Charts)}
}

// GetChart returns the plot traces stored under the "data" key of the data
// column together with the layout.
func (r *PostgresChartRepository) GetChart(ctx context.Context, name string) (*tabula.Chart, error) {
	query := fmt.Sprintf(`SELECT data, layout FROM %s WHERE name = $1`, r.table)

	var dataJSON, layoutJSON []byte
	if err := r.pool.QueryRow(ctx, query, name).Scan(&dataJSON, &layoutJSON); err != nil {
		if isNoRows(err) {
			return nil, tabula.NewNotFoundError(tabula.ErrCodeChartNotFound, "chart", name)
		}
		return nil, fmt.Errorf("query chart: %w", err)
	}

	var stored map[string]any
	if err := json.Unmarshal(dataJSON, &stored); err != nil {
		return nil, fmt.Errorf("decode chart data: %w", err)
	}
	var layout any
	if len(layoutJSON) > 0 {
		if err := json.Unmarshal(layoutJSON, &layout); err != nil {
			return nil, fmt.Errorf("decode chart layout: %w", err)
		}
	}
	return &tabula.Chart{Name: name, Data: stored["data"], Layout: layout}, nil
}

var _ tabula.ChartReader = (*PostgresChartRepository)(nil)
