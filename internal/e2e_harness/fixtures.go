package e2e_harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
)

// PricesInput is the dataset used across end-to-end scenarios.
func PricesInput(name string) *tabula.DatasetInput {
	return &tabula.DatasetInput{
		Name:        name,
		Description: "Product prices",
		Schema: tabula.Schema{Fields: []tabula.Field{
			{Name: "product", Type: tabula.FieldTypeString, Required: true, Description: "Product name"},
			{Name: "amount", Type: tabula.FieldTypeNumber, Required: true},
			{Name: "on_sale", Type: tabula.FieldTypeBoolean},
			{Name: "tags", Type: tabula.FieldTypeArray},
		}},
	}
}

// SeedDataPoints inserts n data points into the dataset in order.
func SeedDataPoints(ctx context.Context, m tabula.DatasetManager, datasetID uuid.UUID, n int) ([]*tabula.DataPoint, error) {
	points := make([]*tabula.DataPoint, 0, n)
	for i := 1; i <= n; i++ {
		p, err := m.CreateDataPoint(ctx, datasetID, &tabula.DataPointInput{Data: map[string]any{
			"product": fmt.Sprintf("item-%03d", i),
			"amount":  float64(i),
			"on_sale": i%2 == 0,
			"tags":    []string{"seed"},
		}})
		if err != nil {
			return nil, fmt.Errorf("seed data point %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

// CountDataPoints counts stored rows for a dataset directly through database/sql.
func CountDataPoints(ctx context.Context, db *sql.DB, table string, datasetID uuid.UUID) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s WHERE dataset_id = $1", table), datasetID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count data points: %w", err)
	}
	return n, nil
}

// NewS3Client builds a path-style client for an S3-compatible endpoint.
func NewS3Client(ctx context.Context, endpoint, accessKey, secretKey string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithBaseEndpoint(endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	}), nil
}

// ObjectExists reports whether bucket/key is present.
func ObjectExists(ctx context.Context, client *s3.Client, bucket, key string) (bool, error) {
	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return false, nil
		}
	}
	return false, fmt.Errorf("head object: %w", err)
}
