package internal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/tabula"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "plain", input: "datasets", expected: `"datasets"`},
		{name: "schema qualified", input: "public.data_points", expected: pgx.Identifier{"public", "data_points"}.Sanitize()},
		{name: "trim quotes and spaces", input: `  "a" . "b" .. "c"  `, expected: pgx.Identifier{"a", "b", "c"}.Sanitize()},
		{name: "all empty parts fallback", input: "...", expected: pgx.Identifier{"..."}.Sanitize()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeIdentifier(tt.input))
		})
	}
}

func TestNormalizePagination(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{name: "defaults", page: 0, limit: 0, wantPage: 1, wantLimit: 50},
		{name: "negative", page: -3, limit: -1, wantPage: 1, wantLimit: 50},
		{name: "explicit", page: 3, limit: 20, wantPage: 3, wantLimit: 20},
		{name: "capped", page: 1, limit: 1000, wantPage: 1, wantLimit: 100},
		{name: "huge page", page: math.MaxInt, limit: 50, wantPage: maxListOffset/50 + 1, wantLimit: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := normalizePagination(tt.page, tt.limit, 50, 100)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
			assert.GreaterOrEqual(t, (page-1)*limit, 0)
			assert.LessOrEqual(t, (page-1)*limit, maxListOffset)
		})
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 50))
	assert.Equal(t, 1, totalPages(1, 50))
	assert.Equal(t, 1, totalPages(50, 50))
	assert.Equal(t, 3, totalPages(120, 50))
	assert.Equal(t, 0, totalPages(10, 0))
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("plain")))

	assert.True(t, isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("plain")))
}

func TestTableDDL(t *testing.T) {
	stmts := TableDDL(tabula.DefaultConfig().Database.TableNames)

	assert.Len(t, stmts, 5)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "datasets"`)
	assert.Contains(t, stmts[0], "schema      JSON NOT NULL")
	assert.Contains(t, stmts[1], `REFERENCES "datasets" (id) ON DELETE CASCADE`)
	assert.Contains(t, stmts[1], "data       JSONB NOT NULL")
	assert.Contains(t, stmts[2], `"idx_data_points_dataset_created"`)
	assert.True(t, strings.Contains(stmts[3], `"admin_users"`))
	assert.True(t, strings.Contains(stmts[4], `"charts"`))
}

func TestTableDDL_OptionalTables(t *testing.T) {
	stmts := TableDDL(tabula.TableNames{Datasets: "ds", DataPoints: "dp"})

	assert.Len(t, stmts, 3)
}
