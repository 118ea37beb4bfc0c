package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlvault/artifactfs/pkg/storage"
)

type fakeServer struct {
	*httptest.Server
	mux        *http.ServeMux
	tokenCalls atomic.Int64
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{mux: http.NewServeMux()}

	fs.mux.HandleFunc("POST /artifactfs/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "admin" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fs.tokenCalls.Add(1)
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "test_token"})
	})

	fs.Server = httptest.NewServer(fs.mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) newClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(context.Background(), Config{
		BaseURL:    fs.URL,
		PathPrefix: "artifactfs",
		UseAuth:    true,
		Username:   "admin",
		Password:   "secret",
		ProdToken:  "prod-123",
	})
	require.NoError(t, err)
	return c
}

func TestNewAcquiresToken(t *testing.T) {
	srv := newFakeServer(t)

	var gotAuth, gotProd string
	srv.mux.HandleFunc("GET /artifactfs/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProd = r.Header.Get("X-Prod-Token")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	})

	c := srv.newClient(t)
	assert.Equal(t, int64(1), srv.tokenCalls.Load())

	require.NoError(t, c.Healthcheck(context.Background()))
	assert.Equal(t, "Bearer test_token", gotAuth)
	assert.Equal(t, "prod-123", gotProd)
}

func TestNewRejectsBadCredentials(t *testing.T) {
	srv := newFakeServer(t)

	_, err := New(context.Background(), Config{
		BaseURL:    srv.URL,
		PathPrefix: "artifactfs",
		UseAuth:    true,
		Username:   "admin",
		Password:   "wrong",
	})
	assert.ErrorIs(t, err, storage.ErrAuthFailed)
}

func TestRequestWithRetryRecovers(t *testing.T) {
	srv := newFakeServer(t)

	var attempts atomic.Int64
	srv.mux.HandleFunc("GET /artifactfs/storage/settings", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(StorageSettingsResponse{StorageType: storage.TypeGCS})
	})

	c := srv.newClient(t)

	settings, err := c.StorageSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.TypeGCS, settings.StorageType)

	// Two failed attempts, one success, and a token refresh between each
	// failure (plus the initial acquisition).
	assert.Equal(t, int64(3), attempts.Load())
	assert.Equal(t, int64(3), srv.tokenCalls.Load())
}

func TestRequestWithRetryExhausts(t *testing.T) {
	srv := newFakeServer(t)

	var attempts atomic.Int64
	srv.mux.HandleFunc("GET /artifactfs/files/list", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(APIError{Code: "internal", Message: "backend down"})
	})

	c := srv.newClient(t)

	var out ListResponse
	err := c.GetJSON(context.Background(), RouteFilesList, nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrExhaustedRetries)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := newFakeServer(t)

	srv.mux.HandleFunc("GET /artifactfs/files/list/info", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIError{Code: "not_found", Message: "no such path"})
	})

	c := srv.newClient(t)

	_, err := c.Request(context.Background(), http.MethodGet, RouteFilesListInfo, nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "no such path")
}

func TestNoAuthSkipsToken(t *testing.T) {
	srv := newFakeServer(t)

	srv.mux.HandleFunc("GET /artifactfs/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte("{}"))
	})

	c, err := New(context.Background(), Config{BaseURL: srv.URL, PathPrefix: "artifactfs"})
	require.NoError(t, err)
	require.NoError(t, c.Healthcheck(context.Background()))
	assert.Equal(t, int64(0), srv.tokenCalls.Load())
}
