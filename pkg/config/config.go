// Package config loads and validates the storage settings for artifactfs.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ARTIFACTFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Settings are resolved once at startup and read-only thereafter.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/mlvault/artifactfs/internal/bytesize"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// Settings is the immutable storage configuration.
type Settings struct {
	// StorageURI selects the backend: "gs://bucket", "s3://bucket",
	// "az://container" or a local path.
	StorageURI string `mapstructure:"storage_uri" validate:"required"`

	// ClientMode relays all storage traffic through the registry server
	// instead of touching a bucket directly.
	ClientMode bool `mapstructure:"client_mode"`

	// ChunkSize is the multipart chunk size. Accepts human-readable values
	// such as "5MiB".
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"min=0"`

	// MaxParallel bounds per-file fan-out on recursive transfers.
	MaxParallel int `mapstructure:"max_parallel" validate:"min=0"`

	// Logging controls log output behavior.
	Logging LoggingSettings `mapstructure:"logging"`

	// API configures the registry-server connection used in client mode.
	API APISettings `mapstructure:"api"`
}

// LoggingSettings controls logging behavior.
type LoggingSettings struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output"`
}

// APISettings configures the registry-server HTTP API client.
type APISettings struct {
	// BaseURL is the registry server address, e.g. "http://localhost:8888".
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`

	// PathPrefix is prepended to every route, e.g. "artifactfs".
	PathPrefix string `mapstructure:"path_prefix"`

	// UseAuth enables username/password token acquisition.
	UseAuth  bool   `mapstructure:"use_auth"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// ProdToken is sent on every request as the deployment token header.
	ProdToken string `mapstructure:"prod_token"`
}

// StorageType derives the backend type from the configured URI. Client mode
// always selects the HTTP proxy backend.
func (s *Settings) StorageType() storage.StorageType {
	if s.ClientMode {
		return storage.TypeHTTPProxy
	}
	return DetectStorageType(s.StorageURI)
}

// Bucket returns the bucket/container component of the storage URI, or the
// full path for local storage.
func (s *Settings) Bucket() string {
	uri := s.StorageURI
	for _, scheme := range []string{"gs://", "s3://", "az://", "azure://"} {
		if rest, ok := strings.CutPrefix(uri, scheme); ok {
			bucket, _, _ := strings.Cut(rest, "/")
			return bucket
		}
	}
	return uri
}

// DetectStorageType maps a storage URI scheme to its backend type.
func DetectStorageType(uri string) storage.StorageType {
	switch {
	case strings.HasPrefix(uri, "gs://"):
		return storage.TypeGCS
	case strings.HasPrefix(uri, "s3://"):
		return storage.TypeS3
	case strings.HasPrefix(uri, "az://"), strings.HasPrefix(uri, "azure://"):
		return storage.TypeAzure
	default:
		return storage.TypeLocal
	}
}

// Load reads settings from the given config file (optional) and the
// environment, applies defaults and validates the result.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("storage_uri", "./artifactfs_registry")
	v.SetDefault("chunk_size", "5MiB")
	v.SetDefault("max_parallel", storage.DefaultMaxParallel)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.path_prefix", "artifactfs")

	v.SetEnvPrefix("ARTIFACTFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var settings Settings
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&settings, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := Validate(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks a Settings value against its struct constraints plus the
// cross-field rules that tags cannot express.
func Validate(s *Settings) error {
	validate := validator.New()

	// Report mapstructure names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if s.ClientMode && s.API.BaseURL == "" {
		return fmt.Errorf("%w: client_mode requires api.base_url", storage.ErrInvalidArgument)
	}
	if s.API.UseAuth && (s.API.Username == "" || s.API.Password == "") {
		return fmt.Errorf("%w: api.use_auth requires username and password", storage.ErrInvalidArgument)
	}
	return nil
}
