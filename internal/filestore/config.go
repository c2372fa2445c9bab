package filestore

import (
	"github.com/koustreak/xetra/internal/errs"
)

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderS3     Provider = "s3"
	ProviderMemory Provider = "memory"
)

// Config holds all settings needed to connect to a file storage backend.
type Config struct {
	// Provider is the storage backend (e.g. ProviderS3).
	Provider Provider

	// Endpoint is the address of the storage server.
	// MinIO expects host:port ("localhost:9000"); S3 accepts a full URL
	// ("https://s3.eu-central-1.amazonaws.com") or is left empty for AWS defaults.
	Endpoint string

	// Credentials are the resolved access key and secret.
	Credentials Credentials

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool

	// Region is used by region-aware backends (e.g. AWS S3).
	Region string

	// Bucket is the container every connector call targets.
	Bucket string
}

// DefaultConfig returns a local-dev config for MinIO.
func DefaultConfig(endpoint, bucket string, creds Credentials) *Config {
	return &Config{
		Provider:    ProviderMinIO,
		Endpoint:    endpoint,
		Credentials: creds,
		UseSSL:      false,
		Bucket:      bucket,
	}
}

// Validate checks the settings every provider needs.
func (c *Config) Validate() error {
	if c == nil {
		return errs.New(errs.ErrKindConfig, "filestore config is nil")
	}
	if c.Bucket == "" {
		return errs.New(errs.ErrKindConfig, "bucket name is required")
	}
	switch c.Provider {
	case ProviderMemory:
		return nil
	case ProviderMinIO, ProviderS3:
	default:
		return errs.New(errs.ErrKindConfig, "unknown storage provider").WithSubject(string(c.Provider))
	}
	if c.Provider == ProviderMinIO && c.Endpoint == "" {
		return errs.New(errs.ErrKindConfig, "minio endpoint is required")
	}
	if c.Credentials.AccessKey == "" || c.Credentials.SecretKey == "" {
		return errs.New(errs.ErrKindConfig, "access key and secret key are required")
	}
	return nil
}
