package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlvault/artifactfs/pkg/apiclient"
	"github.com/mlvault/artifactfs/pkg/config"
	"github.com/mlvault/artifactfs/pkg/storage"
	"github.com/mlvault/artifactfs/pkg/storage/httpfs"
)

func TestNewClientLocal(t *testing.T) {
	root := t.TempDir()
	settings := &config.Settings{StorageURI: root}

	client, err := NewClient(context.Background(), settings, nil)
	require.NoError(t, err)

	assert.Equal(t, storage.TypeLocal, client.StorageType())
}

func TestNewClientClientModeDiscoversBackend(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /artifactfs/storage/settings", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiclient.StorageSettingsResponse{StorageType: storage.TypeGCS})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	settings := &config.Settings{
		StorageURI: "gs://artifacts",
		ClientMode: true,
		API: config.APISettings{
			BaseURL:    srv.URL,
			PathPrefix: "artifactfs",
		},
	}

	client, err := NewClient(context.Background(), settings, nil)
	require.NoError(t, err)

	assert.Equal(t, storage.TypeHTTPProxy, client.StorageType())
	proxy, ok := client.(*httpfs.Client)
	require.True(t, ok)
	assert.Equal(t, storage.TypeGCS, proxy.RealType())
	assert.Equal(t, "artifacts", proxy.Bucket())
}

func TestNewFileSystemLocal(t *testing.T) {
	settings := &config.Settings{StorageURI: t.TempDir(), MaxParallel: 2}

	fs, err := NewFileSystem(context.Background(), settings, nil)
	require.NoError(t, err)
	assert.Equal(t, "local", fs.Name())
}
