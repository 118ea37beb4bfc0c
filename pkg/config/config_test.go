package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlvault/artifactfs/internal/bytesize"
	"github.com/mlvault/artifactfs/pkg/storage"
)

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		uri  string
		want storage.StorageType
	}{
		{"gs://my-bucket/models", storage.TypeGCS},
		{"s3://my-bucket", storage.TypeS3},
		{"az://my-container", storage.TypeAzure},
		{"azure://my-container", storage.TypeAzure},
		{"./local/dir", storage.TypeLocal},
		{"/abs/path", storage.TypeLocal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectStorageType(tt.uri), "uri %q", tt.uri)
	}
}

func TestSettingsBucket(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"gs://my-bucket/models/v1", "my-bucket"},
		{"s3://my-bucket", "my-bucket"},
		{"az://container/sub", "container"},
		{"./local/dir", "./local/dir"},
	}

	for _, tt := range tests {
		s := Settings{StorageURI: tt.uri}
		assert.Equal(t, tt.want, s.Bucket(), "uri %q", tt.uri)
	}
}

func TestSettingsStorageTypeClientMode(t *testing.T) {
	s := Settings{StorageURI: "gs://my-bucket", ClientMode: true}
	assert.Equal(t, storage.TypeHTTPProxy, s.StorageType())

	s.ClientMode = false
	assert.Equal(t, storage.TypeGCS, s.StorageType())
}

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./artifactfs_registry", settings.StorageURI)
	assert.Equal(t, 5*bytesize.MiB, settings.ChunkSize)
	assert.Equal(t, storage.DefaultMaxParallel, settings.MaxParallel)
	assert.Equal(t, "INFO", settings.Logging.Level)
	assert.Equal(t, "artifactfs", settings.API.PathPrefix)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_uri: s3://artifacts
chunk_size: 8MiB
max_parallel: 4
logging:
  level: DEBUG
api:
  base_url: http://localhost:8888
  use_auth: true
  username: admin
  password: secret
`), 0o644))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3://artifacts", settings.StorageURI)
	assert.Equal(t, 8*bytesize.MiB, settings.ChunkSize)
	assert.Equal(t, 4, settings.MaxParallel)
	assert.Equal(t, "DEBUG", settings.Logging.Level)
	assert.True(t, settings.API.UseAuth)
	assert.Equal(t, storage.TypeS3, settings.StorageType())
	assert.Equal(t, "artifacts", settings.Bucket())
}

func TestValidateClientModeRequiresBaseURL(t *testing.T) {
	s := &Settings{StorageURI: "gs://bucket", ClientMode: true}
	err := Validate(s)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	s.API.BaseURL = "http://localhost:8888"
	assert.NoError(t, Validate(s))
}

func TestValidateAuthRequiresCredentials(t *testing.T) {
	s := &Settings{
		StorageURI: "gs://bucket",
		API:        APISettings{UseAuth: true, Username: "admin"},
	}
	err := Validate(s)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)

	s.API.Password = "secret"
	assert.NoError(t, Validate(s))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	s := &Settings{
		StorageURI: "gs://bucket",
		Logging:    LoggingSettings{Level: "LOUD"},
	}
	assert.Error(t, Validate(s))
}
