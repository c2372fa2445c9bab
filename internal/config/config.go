// Package config loads the xetra job configuration from a YAML file.
//
// The file names where credentials come from (environment entry names),
// never the secrets themselves. Resolution happens in the caller through
// filestore.CredentialRef.Resolve.
package config

import (
	"os"
	"time"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
)

// Config is the whole job configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Source  StoreConfig   `yaml:"source"`
	Target  StoreConfig   `yaml:"target"`
	Extract ExtractConfig `yaml:"extract"`
	Load    LoadConfig    `yaml:"load"`
	Meta    MetaConfig    `yaml:"meta"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig describes one bucket and how to reach it.
type StoreConfig struct {
	Provider     string `yaml:"provider"`
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	UseSSL       bool   `yaml:"use_ssl"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// ExtractConfig controls which source objects are read and how.
type ExtractConfig struct {
	FirstDate  string `yaml:"first_date"`
	DateFormat string `yaml:"date_format"`
	Encoding   string `yaml:"encoding"`
	Delimiter  string `yaml:"delimiter"`
}

// LoadConfig controls the report key and format.
type LoadConfig struct {
	KeyPrefix     string `yaml:"key_prefix"`
	KeyDateFormat string `yaml:"key_date_format"`
	Format        string `yaml:"format"`
}

// MetaConfig locates the meta file in the target bucket.
type MetaConfig struct {
	Key string `yaml:"key"`
}

// Default returns a configuration with every optional field filled.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Source: StoreConfig{
			Provider:     string(filestore.ProviderS3),
			UseSSL:       true,
			AccessKeyEnv: "AWS_ACCESS_KEY_ID",
			SecretKeyEnv: "AWS_SECRET_ACCESS_KEY",
		},
		Target: StoreConfig{
			Provider:     string(filestore.ProviderS3),
			UseSSL:       true,
			AccessKeyEnv: "AWS_ACCESS_KEY_ID",
			SecretKeyEnv: "AWS_SECRET_ACCESS_KEY",
		},
		Extract: ExtractConfig{
			DateFormat: "2006-01-02",
			Encoding:   "utf-8",
			Delimiter:  ",",
		},
		Load: LoadConfig{
			KeyPrefix:     "report1/xetra_daily_report1_",
			KeyDateFormat: "20060102_150405",
			Format:        string(codec.FormatParquet),
		},
		Meta: MetaConfig{Key: "meta_file.csv"},
	}
}

// Load reads and validates the file at path. Fields absent from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "failed to read config file", err).WithSubject(path)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the job cannot run without.
func (c *Config) Validate() error {
	stores := []struct {
		name string
		cfg  StoreConfig
	}{{"source", c.Source}, {"target", c.Target}}
	for _, st := range stores {
		name, s := st.name, st.cfg
		if s.Bucket == "" {
			return errs.New(errs.ErrKindConfig, "bucket is required").WithSubject(name)
		}
		switch filestore.Provider(s.Provider) {
		case filestore.ProviderS3, filestore.ProviderMinIO, filestore.ProviderMemory:
		default:
			return errs.New(errs.ErrKindConfig, "unknown storage provider").WithSubject(s.Provider)
		}
		if filestore.Provider(s.Provider) != filestore.ProviderMemory && (s.AccessKeyEnv == "" || s.SecretKeyEnv == "") {
			return errs.New(errs.ErrKindConfig, "credential entry names are required").WithSubject(name)
		}
	}

	if _, err := time.Parse(c.Extract.DateFormat, c.Extract.FirstDate); err != nil {
		return errs.Wrap(errs.ErrKindConfig, "first_date does not match date_format", err).WithSubject(c.Extract.FirstDate)
	}
	if utf8.RuneCountInString(c.Extract.Delimiter) != 1 {
		return errs.New(errs.ErrKindConfig, "delimiter must be a single character").WithSubject(c.Extract.Delimiter)
	}
	if !codec.NewRegistry().Supports(c.LoadFormat()) {
		return errs.New(errs.ErrKindConfig, "load format has no codec").WithSubject(c.Load.Format)
	}
	if c.Load.KeyPrefix == "" || c.Load.KeyDateFormat == "" {
		return errs.New(errs.ErrKindConfig, "load key prefix and date format are required")
	}
	if c.Meta.Key == "" {
		return errs.New(errs.ErrKindConfig, "meta key is required")
	}
	return nil
}

// LoadFormat returns the parsed target format.
func (c *Config) LoadFormat() codec.Format {
	return codec.ParseFormat(c.Load.Format)
}

// FirstDate returns the parsed first extract date.
func (c *Config) FirstDate() time.Time {
	t, _ := time.Parse(c.Extract.DateFormat, c.Extract.FirstDate)
	return t
}

// ReadOptions returns the codec options for source objects.
func (c *Config) ReadOptions() codec.Options {
	d, _ := utf8.DecodeRuneInString(c.Extract.Delimiter)
	return codec.Options{Encoding: c.Extract.Encoding, Delimiter: d}
}

// CredentialRef returns the names of the entries holding the credentials.
func (s StoreConfig) CredentialRef() filestore.CredentialRef {
	return filestore.CredentialRef{AccessKeyEnv: s.AccessKeyEnv, SecretKeyEnv: s.SecretKeyEnv}
}

// Filestore builds the driver config from s and resolved credentials.
func (s StoreConfig) Filestore(creds filestore.Credentials) *filestore.Config {
	return &filestore.Config{
		Provider:    filestore.Provider(s.Provider),
		Endpoint:    s.Endpoint,
		Credentials: creds,
		UseSSL:      s.UseSSL,
		Region:      s.Region,
		Bucket:      s.Bucket,
	}
}
