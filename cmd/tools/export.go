package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/factory"
)

func runExport(args []string) error {
	config := tabula.DefaultConfig()
	flags := newFlagSet("export", "-dataset-id <uuid> [options]")
	dbFlags(flags, config)
	exp := &config.Export
	datasetID := flags.String("dataset-id", "", "dataset to export")
	flags.StringVar(&exp.S3Bucket, "s3-bucket", getenvDefault("EXPORT_S3_BUCKET", ""), "destination bucket")
	flags.StringVar(&exp.S3Prefix, "s3-prefix", getenvDefault("EXPORT_S3_PREFIX", exp.S3Prefix), "key prefix")
	flags.StringVar(&exp.S3Region, "s3-region", getenvDefault("EXPORT_S3_REGION", exp.S3Region), "bucket region")
	flags.StringVar(&exp.S3Endpoint, "s3-endpoint", getenvDefault("EXPORT_S3_ENDPOINT", ""), "custom S3 endpoint (path style)")
	flags.StringVar(&exp.DuckDBPath, "duckdb-path", getenvDefault("EXPORT_DUCKDB_PATH", ""), "DuckDB database file (empty for in-memory)")
	flags.IntVar(&exp.DuckDBMemoryMB, "duckdb-memory-mb", getenvDefaultInt("EXPORT_DUCKDB_MEMORY_MB", exp.DuckDBMemoryMB), "DuckDB memory limit")
	flags.IntVar(&exp.DuckDBThreads, "duckdb-threads", getenvDefaultInt("EXPORT_DUCKDB_THREADS", exp.DuckDBThreads), "DuckDB worker threads")
	if ok, err := parseFlags(flags, args); !ok {
		return err
	}

	id, err := uuid.Parse(*datasetID)
	if err != nil {
		return fmt.Errorf("invalid -dataset-id %q: %w", *datasetID, err)
	}
	exp.Enabled = true
	exp.S3AccessKey = getenvDefault("AWS_ACCESS_KEY_ID", "")
	exp.S3SecretKey = getenvDefault("AWS_SECRET_ACCESS_KEY", "")

	ctx := context.Background()
	pool, err := factory.NewDatabasePool(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager, err := factory.NewDatasetManagerWithConfig(config, pool)
	if err != nil {
		return err
	}
	ds, err := manager.GetDataset(ctx, id)
	if err != nil {
		return err
	}

	exporter, err := factory.NewExporter(ctx, config)
	if err != nil {
		return err
	}
	defer exporter.Close()

	result, err := exporter.ExportDataset(ctx, ds)
	if err != nil {
		return err
	}
	fmt.Printf("Exported dataset %s to s3://%s/%s (manifest %s).\n", ds.Name, result.Bucket, result.Key, result.ManifestKey)
	return nil
}
