package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlvault/artifactfs/pkg/storage"
)

// fakeSession accepts ordered Content-Range PUTs like a GCS resumable session.
type fakeSession struct {
	total    int64
	received int64
	ranges   []string
}

func (s *fakeSession) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.ranges = append(s.ranges, r.Header.Get("Content-Range"))
		s.received += int64(len(body))

		if s.received >= s.total {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", s.received-1))
		w.WriteHeader(http.StatusPermanentRedirect)
	}
}

func TestResumableUpload(t *testing.T) {
	session := &fakeSession{total: 250}
	srv := httptest.NewServer(session.handler())
	defer srv.Close()

	up := NewSessionUpload(srv.URL, 250)
	assert.Equal(t, srv.URL, up.SessionID())
	assert.Equal(t, StatusNotStarted, up.Status())

	ctx := context.Background()
	plan, err := storage.PlanChunks(250, 100)
	require.NoError(t, err)
	require.Equal(t, int64(3), plan.Count)

	data := make([]byte, 250)

	chunk := plan.Range(0)
	require.NoError(t, up.UploadChunk(ctx, chunk, data[chunk.First:chunk.Last+1]))
	assert.Equal(t, StatusResumeIncomplete, up.Status())
	assert.Equal(t, int64(100), up.Cursor())

	chunk = plan.Range(1)
	require.NoError(t, up.UploadChunk(ctx, chunk, data[chunk.First:chunk.Last+1]))
	assert.Equal(t, int64(200), up.Cursor())

	chunk = plan.Range(2)
	require.NoError(t, up.UploadChunk(ctx, chunk, data[chunk.First:chunk.Last+1]))
	assert.Equal(t, StatusOk, up.Status())
	assert.Equal(t, int64(250), up.Cursor())

	require.NoError(t, up.Complete(ctx))

	assert.Equal(t, []string{
		"bytes 0-99/250",
		"bytes 100-199/250",
		"bytes 200-249/250",
	}, session.ranges)
}

func TestResumableUploadIncomplete(t *testing.T) {
	up := NewSessionUpload("http://example.invalid/session", 100)

	err := up.Complete(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete")
}

func TestResumableUploadRejectedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	up := NewSessionUpload(srv.URL, 100)
	err := up.UploadChunk(context.Background(), storage.Chunk{Index: 0, First: 0, Last: 99, Size: 100}, make([]byte, 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "500", r.Header.Get("X-Upload-Content-Length"))
		w.Header().Set("Location", "https://upload.example/session/abc")
	}))
	defer srv.Close()

	sessionURL, err := createSession(context.Background(), nil, srv.URL, 500)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example/session/abc", sessionURL)
}

func TestCreateSessionMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := createSession(context.Background(), nil, srv.URL, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestParseRangeEnd(t *testing.T) {
	assert.Equal(t, int64(100), parseRangeEnd("bytes=0-99", 0))
	assert.Equal(t, int64(42), parseRangeEnd("", 42))
	assert.Equal(t, int64(42), parseRangeEnd("bytes=0-xyz", 42))
}
