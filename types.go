package tabula

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Dataset is an administrator-defined collection of records sharing one schema.
type Dataset struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Schema      StorageSchema `json:"schema"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// FieldSchema decodes the stored schema document into its field list.
func (d *Dataset) FieldSchema() (Schema, error) {
	return FromStorageShape(d.Schema)
}

// DataPoint is one record of a dataset.
type DataPoint struct {
	ID        uuid.UUID      `json:"id"`
	DatasetID uuid.UUID      `json:"dataset_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DatasetInput is the body of a dataset create or update. Schema is any
// JSON-compatible value (raw JSON, a decoded JSON object, a StorageSchema or a Schema).
// Decoded Go maps lose key order; pass raw JSON when field order matters.
type DatasetInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      any    `json:"schema"`
}

// UnmarshalJSON keeps the schema as raw bytes so its property order survives.
func (in *DatasetInput) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Schema      json.RawMessage `json:"schema"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*in = DatasetInput{Name: wire.Name, Description: wire.Description}
	if raw := bytes.TrimSpace(wire.Schema); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		in.Schema = json.RawMessage(raw)
	}
	return nil
}

// DataPointInput is the body of a data point create or update.
type DataPointInput struct {
	Data any `json:"data"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// DataPointPage is a page of data points.
type DataPointPage struct {
	Data       []*DataPoint `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// Principal is an authenticated administrator.
type Principal struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
}

// Chart is a stored plot definition served to the public site.
type Chart struct {
	Name   string `json:"-"`
	Data   any    `json:"data"`
	Layout any    `json:"layout"`
}

// ExportResult describes a dataset snapshot written to object storage.
type ExportResult struct {
	DatasetID   uuid.UUID `json:"dataset_id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ManifestKey string    `json:"manifest_key"`
	ExportedAt  time.Time `json:"exported_at"`
}
