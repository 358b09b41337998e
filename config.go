package tabula

import (
	"time"
)

// Config consolidates settings for the server, tools and data layer
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	RateLimit  RateLimitConfig  `json:"rateLimit"`
	Redis      RedisConfig      `json:"redis"`
	Query      QueryConfig      `json:"query"`
	Validation ValidationConfig `json:"validation"`
	Logging    LoggingConfig    `json:"logging"`
	Export     ExportConfig     `json:"export"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	MinConnections  int           `json:"minConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	Timeout         time.Duration `json:"timeout"`
	UseIAMAuth      bool          `json:"useIAMAuth"`
	Region          string        `json:"region"`
	TableNames      TableNames    `json:"tableNames"`
}

// TableNames holds the physical table names used by the repositories
type TableNames struct {
	Datasets   string `json:"datasets"`
	DataPoints string `json:"dataPoints"`
	AdminUsers string `json:"adminUsers"`
	Charts     string `json:"charts"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
	APIVersion      string        `json:"apiVersion"`
}

// AuthConfig contains admin session settings
type AuthConfig struct {
	JWTSecret    string        `json:"-"`
	Issuer       string        `json:"issuer"`
	TokenTTL     time.Duration `json:"tokenTTL"`
	CookieName   string        `json:"cookieName"`
	CookieMaxAge int           `json:"cookieMaxAge"` // seconds
	SecureCookie bool          `json:"secureCookie"`
}

// RateLimitConfig contains per-origin request limits for protected routes
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled"`
	MaxRequests       int           `json:"maxRequests"`
	Window            time.Duration `json:"window"`
	TrustForwardedFor bool          `json:"trustForwardedFor"`
	KeyPrefix         string        `json:"keyPrefix"`
}

// RedisConfig contains the shared counter store settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// QueryConfig contains listing settings
type QueryConfig struct {
	DefaultTimeout  time.Duration `json:"defaultTimeout"`
	DefaultPageSize int           `json:"defaultPageSize"`
	MaxPageSize     int           `json:"maxPageSize"`
}

// ValidationConfig controls the validation gate
type ValidationConfig struct {
	EnforceFieldTypes bool `json:"enforceFieldTypes"`
	MaxSchemaFields   int  `json:"maxSchemaFields"`
	MaxDataBytes      int  `json:"maxDataBytes"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ExportConfig contains dataset snapshot export settings
type ExportConfig struct {
	Enabled        bool   `json:"enabled"`
	S3Bucket       string `json:"s3Bucket"`
	S3Prefix       string `json:"s3Prefix"`
	S3Region       string `json:"s3Region"`
	S3Endpoint     string `json:"s3Endpoint"`
	S3AccessKey    string `json:"-"`
	S3SecretKey    string `json:"-"`
	DuckDBPath     string `json:"duckdbPath"`
	DuckDBMemoryMB int    `json:"duckdbMemoryMB"`
	DuckDBThreads  int    `json:"duckdbThreads"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "tabula",
			SSLMode:         "disable",
			MaxConnections:  25,
			MinConnections:  1,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			Timeout:         30 * time.Second,
			Region:          "us-east-1",
			TableNames: TableNames{
				Datasets:   "datasets",
				DataPoints: "data_points",
				AdminUsers: "admin_users",
				Charts:     "charts",
			},
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			APIVersion:      "1.0.0",
		},
		Auth: AuthConfig{
			Issuer:       "tabula",
			TokenTTL:     time.Hour,
			CookieName:   "admin-token",
			CookieMaxAge: 86400,
			SecureCookie: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			MaxRequests:       10,
			Window:            time.Minute,
			TrustForwardedFor: true,
			KeyPrefix:         "ratelimit:",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Query: QueryConfig{
			DefaultTimeout:  30 * time.Second,
			DefaultPageSize: 50,
			MaxPageSize:     100,
		},
		Validation: ValidationConfig{
			EnforceFieldTypes: true,
			MaxSchemaFields:   200,
			MaxDataBytes:      1024 * 1024, // 1MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Export: ExportConfig{
			S3Prefix:       "exports",
			S3Region:       "us-east-1",
			DuckDBMemoryMB: 512,
			DuckDBThreads:  2,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.MaxConnections <= 0 {
		return &ConfigError{Field: "database.maxConnections", Message: "must be greater than 0"}
	}

	if c.Database.TableNames.Datasets == "" || c.Database.TableNames.DataPoints == "" {
		return &ConfigError{Field: "database.tableNames", Message: "dataset and data point table names are required"}
	}

	if c.Query.DefaultPageSize <= 0 {
		return &ConfigError{Field: "query.defaultPageSize", Message: "must be greater than 0"}
	}

	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return &ConfigError{Field: "query.maxPageSize", Message: "must be greater than or equal to defaultPageSize"}
	}

	if c.Auth.TokenTTL <= 0 {
		return &ConfigError{Field: "auth.tokenTTL", Message: "must be greater than 0"}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return &ConfigError{Field: "rateLimit.maxRequests", Message: "must be greater than 0"}
		}
		if c.RateLimit.Window <= 0 {
			return &ConfigError{Field: "rateLimit.window", Message: "must be greater than 0"}
		}
	}

	if c.Export.Enabled && c.Export.S3Bucket == "" {
		return &ConfigError{Field: "export.s3Bucket", Message: "required when export is enabled"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
