package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/xetra/internal/codec"
	"github.com/koustreak/xetra/internal/errs"
	"github.com/koustreak/xetra/internal/filestore"
)

const minimal = `
source:
  bucket: src
extract:
  first_date: "2021-04-01"
target:
  bucket: trg
`

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "xetra_report1.yml"))
	require.NoError(t, err)

	assert.Equal(t, "deutsche-boerse-xetra-pds", cfg.Source.Bucket)
	assert.Equal(t, "xetra-reports", cfg.Target.Bucket)
	assert.Equal(t, codec.FormatParquet, cfg.LoadFormat())
	assert.Equal(t, time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC), cfg.FirstDate())
	assert.Equal(t, "meta_file.csv", cfg.Meta.Key)
}

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "s3", cfg.Source.Provider)
	assert.Equal(t, "AWS_ACCESS_KEY_ID", cfg.Target.AccessKeyEnv)
	assert.Equal(t, "report1/xetra_daily_report1_", cfg.Load.KeyPrefix)
	assert.Equal(t, codec.Options{Encoding: "utf-8", Delimiter: ','}, cfg.ReadOptions())
}

func TestParse_Invalid(t *testing.T) {
	const stores = "source: {bucket: s}\ntarget: {bucket: t}\n"

	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed yaml", yaml: "source: [unclosed"},
		{name: "missing source bucket", yaml: "target: {bucket: t}\nextract: {first_date: '2021-04-01'}"},
		{name: "unknown provider", yaml: "source: {bucket: s, provider: gcs}\ntarget: {bucket: t}\nextract: {first_date: '2021-04-01'}"},
		{name: "missing credential names", yaml: "source: {bucket: s, access_key_env: ''}\ntarget: {bucket: t}\nextract: {first_date: '2021-04-01'}"},
		{name: "bad first date", yaml: stores + "extract: {first_date: '01.04.2021'}"},
		{name: "multi char delimiter", yaml: stores + "extract: {first_date: '2021-04-01', delimiter: '::'}"},
		{name: "json output is unsupported", yaml: minimal + "load: {format: json}"},
		{name: "empty meta key", yaml: minimal + "meta: {key: ''}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, errs.IsConfig(err), "got %v", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

	assert.True(t, errs.IsConfig(err))
}

func TestLoad_TempFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yml")
	require.NoError(t, os.WriteFile(path, []byte("source: {bucket: s, provider: minio, endpoint: 'localhost:9000'}\ntarget: {bucket: t}\nextract: {first_date: '2021-04-01'}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	fs := cfg.Source.Filestore(filestore.Credentials{AccessKey: "a", SecretKey: "b"})
	assert.Equal(t, filestore.ProviderMinIO, fs.Provider)
	assert.Equal(t, "localhost:9000", fs.Endpoint)
	assert.Equal(t, "s", fs.Bucket)
	assert.NoError(t, fs.Validate())
	assert.Equal(t, filestore.CredentialRef{AccessKeyEnv: "AWS_ACCESS_KEY_ID", SecretKeyEnv: "AWS_SECRET_ACCESS_KEY"},
		cfg.Source.CredentialRef())
}
