package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/storage"
)

// UploadStatus tracks the state of a resumable upload session.
type UploadStatus int

const (
	// StatusNotStarted means no chunk has been accepted yet.
	StatusNotStarted UploadStatus = iota
	// StatusResumeIncomplete means the session accepted a partial range and
	// expects more data.
	StatusResumeIncomplete
	// StatusOk means the session accepted the final chunk and the object is
	// finalized.
	StatusOk
)

// uploadEndpoint is the JSON API resumable-upload root.
const uploadEndpoint = "https://storage.googleapis.com/upload/storage/v1/b"

// sessionTimeout bounds the session-creation request.
const sessionTimeout = 30 * time.Second

// Upload drives one GCS resumable upload session. Chunks must arrive in
// order; the session cursor tracks the next byte the server expects.
type Upload struct {
	http       *http.Client
	sessionURL string
	totalSize  int64
	cursor     int64
	status     UploadStatus
}

// NewUpload opens a resumable session for remotePath. totalSize is the final
// object size and is fixed for the lifetime of the session.
func (c *Client) NewUpload(ctx context.Context, remotePath string, totalSize int64) (*Upload, error) {
	endpoint := fmt.Sprintf("%s/%s/o?uploadType=resumable&name=%s",
		uploadEndpoint, c.bucket, url.QueryEscape(remotePath))

	sessionURL, err := createSession(ctx, c.tokenSource, endpoint, totalSize)
	if err != nil {
		return nil, err
	}
	return NewSessionUpload(sessionURL, totalSize), nil
}

// createSession performs the authenticated session-creation POST and returns
// the session URL from the Location header.
func createSession(ctx context.Context, ts oauth2.TokenSource, endpoint string, totalSize int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	if ts != nil {
		token, err := ts.Token()
		if err != nil {
			return "", fmt.Errorf("failed to obtain access token: %w", err)
		}
		token.SetAuthHeader(req)
	}
	req.Header.Set("Content-Length", "0")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(totalSize, 10))

	client := &http.Client{Timeout: sessionTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create resumable session: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("resumable session request returned %d", resp.StatusCode)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("resumable session response missing Location header")
	}
	return sessionURL, nil
}

// NewSessionUpload wraps an already-created session URL, as handed out by the
// registry server in client mode.
func NewSessionUpload(sessionURL string, totalSize int64) *Upload {
	return &Upload{
		http:       &http.Client{Timeout: 5 * time.Minute},
		sessionURL: sessionURL,
		totalSize:  totalSize,
		status:     StatusNotStarted,
	}
}

func (u *Upload) SessionID() string { return u.sessionURL }

// Cursor returns the next byte offset the session expects.
func (u *Upload) Cursor() int64 { return u.cursor }

// Status returns the current session state.
func (u *Upload) Status() UploadStatus { return u.status }

// UploadChunk sends one chunk with its byte range. A 308 response advances
// the cursor to the server-acknowledged offset; 200 or 201 finalizes the
// object.
func (u *Upload) UploadChunk(ctx context.Context, chunk storage.Chunk, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.sessionURL,
		bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build chunk request: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", chunk.First, chunk.Last, u.totalSize))

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload chunk %d: %w", chunk.Index, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		u.status = StatusOk
		u.cursor = u.totalSize
		return nil
	case http.StatusPermanentRedirect: // 308 Resume Incomplete
		u.status = StatusResumeIncomplete
		u.cursor = parseRangeEnd(resp.Header.Get("Range"), chunk.Last+1)
		if u.cursor > u.totalSize {
			u.cursor = u.totalSize
		}
		logger.Debug("resumable chunk accepted", "index", chunk.Index, "cursor", u.cursor)
		return nil
	default:
		return fmt.Errorf("chunk %d rejected with status %d", chunk.Index, resp.StatusCode)
	}
}

// Complete verifies the session finalized. The final chunk's 200/201 already
// committed the object; an incomplete session here means missing bytes.
func (u *Upload) Complete(ctx context.Context) error {
	if u.status != StatusOk {
		return fmt.Errorf("resumable upload incomplete at byte %d of %d", u.cursor, u.totalSize)
	}
	return nil
}

// parseRangeEnd extracts the last acknowledged byte from a "bytes=0-N" Range
// header and returns the next expected offset. Falls back when the header is
// absent or malformed.
func parseRangeEnd(header string, fallback int64) int64 {
	_, end, ok := strings.Cut(header, "-")
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return fallback
	}
	return n + 1
}
