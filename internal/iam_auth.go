package internal

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

// generateIAMTokenFn is swapped out in tests.
var generateIAMTokenFn = func(ctx context.Context, endpoint, region string, creds aws.CredentialsProvider) (string, error) {
	return auth.GenerateDbConnectAuthToken(ctx, endpoint, region, creds)
}

// loadAWSConfigFn is swapped out in tests.
var loadAWSConfigFn = func(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// ResolveDatabasePassword returns the password to connect with. When IAM auth is
// enabled a DSQL connect token is generated; if that fails the configured
// password is used instead.
func ResolveDatabasePassword(ctx context.Context, cfg tabula.DatabaseConfig) string {
	if !cfg.UseIAMAuth {
		return cfg.Password
	}

	awsCfg, err := loadAWSConfigFn(ctx, cfg.Region)
	if err != nil {
		zap.S().Warnw("load aws config for IAM auth failed; using configured password", "error", err)
		return cfg.Password
	}

	endpoint := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	token, err := generateIAMTokenFn(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
	if err != nil || token == "" {
		zap.S().Warnw("failed to generate IAM auth token; falling back to configured password", "endpoint", endpoint, "error", err)
		return cfg.Password
	}
	zap.S().Infow("generated IAM auth token for Postgres connection", "endpoint", endpoint)
	return token
}

// ConnString builds a libpq keyword/value connection string.
func ConnString(cfg tabula.DatabaseConfig, password string) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, password, cfg.Database, sslMode)
}
