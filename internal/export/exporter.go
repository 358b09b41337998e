package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsCreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/internal"
	"go.uber.org/zap"
)

type objectStore interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type snapshotWriter interface {
	CopyDataPoints(ctx context.Context, pgConnStr, table string, datasetID uuid.UUID, dest string) error
}

// Manifest is written next to every snapshot.
type Manifest struct {
	DatasetID  uuid.UUID            `json:"dataset_id"`
	Name       string               `json:"name"`
	Schema     tabula.StorageSchema `json:"schema"`
	Format     string               `json:"format"`
	ObjectKey  string               `json:"object_key"`
	ExportedAt time.Time            `json:"exported_at"`
}

// Exporter writes dataset snapshots to S3 as Parquet.
type Exporter struct {
	cfg       tabula.ExportConfig
	table     string
	pgConnStr string
	objects   objectStore
	uploader  uploader
	snapshot  snapshotWriter
	closer    func() error
	now       func() time.Time
}

var _ tabula.DatasetExporter = (*Exporter)(nil)

// New builds an Exporter backed by the AWS SDK and a DuckDB connection.
func New(ctx context.Context, cfg *tabula.Config) (*Exporter, error) {
	if cfg.Export.S3Bucket == "" {
		return nil, &tabula.ConfigError{Field: "export.s3Bucket", Message: "is required"}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Export.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Export.S3AccessKey != "" {
		awsCfg.Credentials = awsCreds.NewStaticCredentialsProvider(cfg.Export.S3AccessKey, cfg.Export.S3SecretKey, "")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Export.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Export.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	duck, err := NewDuckExporter(ctx, cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("new duck exporter: %w", err)
	}

	pgConnStr := internal.ConnString(cfg.Database, internal.ResolveDatabasePassword(ctx, cfg.Database))
	e := newExporter(cfg.Export, cfg.Database.TableNames.DataPoints, pgConnStr, client, manager.NewUploader(client), duck)
	e.closer = duck.Close
	return e, nil
}

func newExporter(cfg tabula.ExportConfig, table, pgConnStr string, objects objectStore, up uploader, snapshot snapshotWriter) *Exporter {
	return &Exporter{
		cfg:       cfg,
		table:     table,
		pgConnStr: pgConnStr,
		objects:   objects,
		uploader:  up,
		snapshot:  snapshot,
		now:       time.Now,
	}
}

// Close releases the DuckDB connection.
func (e *Exporter) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// ExportDataset snapshots every data point of ds. The Parquet file is written
// under a _tmp key first and promoted once complete, so readers never see a
// partial object.
func (e *Exporter) ExportDataset(ctx context.Context, ds *tabula.Dataset) (*tabula.ExportResult, error) {
	if ds == nil {
		return nil, tabula.NewValidationError("dataset", "dataset is required")
	}
	if err := e.ensureBucket(ctx); err != nil {
		return nil, err
	}

	tmpKey, finalKey, manifestKey := buildKeys(e.cfg.S3Prefix, ds.ID, uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()))
	tmpPath := fmt.Sprintf("s3://%s/%s", e.cfg.S3Bucket, tmpKey)

	zap.S().Infow("export dataset snapshot", "dataset_id", ds.ID, "tmp", tmpPath)
	if err := e.snapshot.CopyDataPoints(ctx, e.pgConnStr, e.table, ds.ID, tmpPath); err != nil {
		return nil, fmt.Errorf("export data points: %w", err)
	}
	if err := e.copyTmpToFinal(ctx, tmpKey, finalKey); err != nil {
		return nil, err
	}

	exportedAt := e.now().UTC()
	manifest, err := json.Marshal(Manifest{
		DatasetID:  ds.ID,
		Name:       ds.Name,
		Schema:     ds.Schema,
		Format:     "parquet",
		ObjectKey:  finalKey,
		ExportedAt: exportedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if _, err := e.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.S3Bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(manifest),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	zap.S().Infow("export completed", "dataset_id", ds.ID, "key", finalKey)
	return &tabula.ExportResult{
		DatasetID:   ds.ID,
		Bucket:      e.cfg.S3Bucket,
		Key:         finalKey,
		ManifestKey: manifestKey,
		ExportedAt:  exportedAt,
	}, nil
}

func (e *Exporter) ensureBucket(ctx context.Context) error {
	bucket := aws.String(e.cfg.S3Bucket)
	if _, err := e.objects.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: bucket}); err == nil {
		return nil
	}
	if _, err := e.objects.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: bucket}); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
				return nil
			}
		}
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (e *Exporter) copyTmpToFinal(ctx context.Context, tmpKey, finalKey string) error {
	bucket := aws.String(e.cfg.S3Bucket)
	if _, err := e.objects.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     bucket,
		CopySource: aws.String(e.cfg.S3Bucket + "/" + tmpKey),
		Key:        aws.String(finalKey),
	}); err != nil {
		return fmt.Errorf("s3 copy tmp->final: %w", err)
	}
	if _, err := e.objects.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: bucket, Key: aws.String(tmpKey)}); err != nil {
		zap.S().Warnw("delete tmp object failed", "key", tmpKey, "error", err)
	}
	return nil
}

func buildKeys(prefix string, datasetID, tmpID, finalID uuid.UUID) (tmpKey, finalKey, manifestKey string) {
	base := fmt.Sprintf("datasets/%s", datasetID)
	if p := strings.Trim(prefix, "/"); p != "" {
		base = p + "/" + base
	}
	tmpKey = fmt.Sprintf("%s/_tmp/%s.parquet", base, tmpID)
	finalKey = fmt.Sprintf("%s/%s.parquet", base, finalID)
	manifestKey = fmt.Sprintf("%s/%s.manifest.json", base, finalID)
	return tmpKey, finalKey, manifestKey
}
