package apiclient

import "github.com/mlvault/artifactfs/pkg/storage"

// TokenResponse is the auth/token response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// StorageSettingsResponse reports the real backend behind the server.
type StorageSettingsResponse struct {
	StorageType storage.StorageType `json:"storage_type"`
}

// ListResponse is the files/list response body.
type ListResponse struct {
	Files []string `json:"files"`
}

// ListInfoResponse is the files/list/info response body.
type ListInfoResponse struct {
	Files []storage.FileInfo `json:"files"`
}

// MultipartSessionResponse carries the backend session handle: a resumable
// session URL for GCS-style backends, an upload ID otherwise.
type MultipartSessionResponse struct {
	SessionURL string `json:"session_url,omitempty"`
	UploadID   string `json:"upload_id,omitempty"`
}

// CompleteMultipartRequest finalizes a multipart session. Parts are required
// for upload-ID backends and ignored for session-URL backends.
type CompleteMultipartRequest struct {
	Path     string          `json:"path"`
	UploadID string          `json:"upload_id,omitempty"`
	Parts    []CompletedPart `json:"parts,omitempty"`
}

// CompletedPart pairs a part number with the ETag the store returned for it.
type CompletedPart struct {
	PartNumber int32  `json:"part_number"`
	ETag       string `json:"etag"`
}

// PresignedURLResponse is the files/presigned response body.
type PresignedURLResponse struct {
	URL string `json:"url"`
}

// DeleteResponse is the files delete response body.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
