package httpfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/mlvault/artifactfs/internal/logger"
	"github.com/mlvault/artifactfs/pkg/apiclient"
	"github.com/mlvault/artifactfs/pkg/storage"
	"github.com/mlvault/artifactfs/pkg/storage/gcs"
)

// multipartSession asks the server to open a multipart session for one
// object. The session handle comes back as a resumable session URL or an
// upload ID depending on the real backend.
func (c *Client) multipartSession(ctx context.Context, remotePath string, totalSize int64) (*apiclient.MultipartSessionResponse, error) {
	query := url.Values{
		"path":      []string{remotePath},
		"file_size": []string{strconv.FormatInt(totalSize, 10)},
	}
	var session apiclient.MultipartSessionResponse
	if err := c.api.GetJSON(ctx, apiclient.RouteFilesMultipart, query, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// newSessionUpload starts a GCS resumable session through the server and
// drives it directly against the returned session URL.
func (c *Client) newSessionUpload(ctx context.Context, remotePath string, totalSize int64) (storage.Uploader, error) {
	session, err := c.multipartSession(ctx, remotePath, totalSize)
	if err != nil {
		return nil, err
	}
	if session.SessionURL == "" {
		return nil, fmt.Errorf("%w: server returned no session URL", storage.ErrDecode)
	}
	return gcs.NewSessionUpload(session.SessionURL, totalSize), nil
}

// partUpload drives an S3 multipart session: each chunk is PUT to a presigned
// part URL fetched from the server, and completion is relayed back with the
// collected ETags.
type partUpload struct {
	client   *Client
	key      string
	uploadID string
	parts    []apiclient.CompletedPart
}

// newPartUpload starts an S3 multipart session through the server.
func (c *Client) newPartUpload(ctx context.Context, remotePath string, totalSize int64) (*partUpload, error) {
	session, err := c.multipartSession(ctx, remotePath, totalSize)
	if err != nil {
		return nil, err
	}
	if session.UploadID == "" {
		return nil, fmt.Errorf("%w: server returned no upload ID", storage.ErrDecode)
	}
	return &partUpload{client: c, key: remotePath, uploadID: session.UploadID}, nil
}

func (u *partUpload) SessionID() string { return u.uploadID }

func (u *partUpload) UploadChunk(ctx context.Context, chunk storage.Chunk, data []byte) error {
	partNumber := int32(chunk.Index + 1)

	query := url.Values{
		"path":           []string{u.key},
		"session_url":    []string{u.uploadID},
		"part_number":    []string{strconv.Itoa(int(partNumber))},
		"for_multi_part": []string{"true"},
	}
	var signed apiclient.PresignedURLResponse
	if err := u.client.api.GetJSON(ctx, apiclient.RouteFilesPresigned, query, &signed); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signed.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build part request: %w", err)
	}
	req.ContentLength = int64(len(data))

	resp, err := u.client.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload part %d of %s: %w", partNumber, u.key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("part %d of %s rejected with status %d", partNumber, u.key, resp.StatusCode)
	}

	u.parts = append(u.parts, apiclient.CompletedPart{
		PartNumber: partNumber,
		ETag:       resp.Header.Get("ETag"),
	})
	return nil
}

// Complete relays the collected part ETags so the server can finalize the
// multipart session.
func (u *partUpload) Complete(ctx context.Context) error {
	resp, err := u.client.api.RequestWithRetry(ctx, http.MethodPut, apiclient.RouteFilesMultipart, nil,
		apiclient.CompleteMultipartRequest{
			Path:     u.key,
			UploadID: u.uploadID,
			Parts:    u.parts,
		})
	if err != nil {
		return err
	}
	resp.Body.Close()

	logger.Debug("multipart upload complete", "key", u.key, "parts", len(u.parts))
	return nil
}

// relayUpload streams the whole file to the server as a multipart form. Used
// when the real backend cannot hand out direct upload URLs.
func (c *Client) relayUpload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		if err := form.WriteField("path", remotePath); err != nil {
			pw.CloseWithError(err)
			return
		}
		part, err := form.CreateFormFile("file", remotePath)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(form.Close())
	}()

	req, err := c.api.NewRequest(ctx, http.MethodPost, apiclient.RouteFiles, nil, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	logger.Debug("relayed upload complete", "path", remotePath)
	return nil
}
