package internal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lychee-technology/tabula"
)

// ValidateExportConfig performs basic sanity checks on the snapshot export settings.
func ValidateExportConfig(cfg tabula.ExportConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.S3Bucket == "" {
		return &tabula.ConfigError{Field: "export.s3Bucket", Message: "is required"}
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey == "" {
		return &tabula.ConfigError{Field: "export.s3SecretKey", Message: "is required when s3AccessKey is set"}
	}
	if cfg.S3SecretKey != "" && cfg.S3AccessKey == "" {
		return &tabula.ConfigError{Field: "export.s3AccessKey", Message: "is required when s3SecretKey is set"}
	}
	if cfg.DuckDBMemoryMB < 0 || cfg.DuckDBThreads < 0 {
		return &tabula.ConfigError{Field: "export.duckdb", Message: "memory and threads must not be negative"}
	}
	return nil
}

// S3HealthCheck sends a HEAD request to the configured object storage endpoint.
// Only reachability is checked; AWS endpoints usually answer 403 to anonymous requests.
func S3HealthCheck(ctx context.Context, cfg tabula.ExportConfig, timeout time.Duration) error {
	if !cfg.Enabled || cfg.S3Endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, cfg.S3Endpoint, nil)
	if err != nil {
		return fmt.Errorf("s3 health request build failed: %w", err)
	}

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("s3 health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil
	}
	return fmt.Errorf("s3 endpoint returned unexpected status: %d", resp.StatusCode)
}
