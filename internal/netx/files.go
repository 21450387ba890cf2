// Package netx is the HTTP client of the file store API.
package netx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filestore/internal/common"
)

// UploadResult is the server's answer to an upload.
type UploadResult struct {
	FileID    string `json:"file_id"`
	Lifecycle string `json:"lifecycle"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
	SHA512    string `json:"sha512"`
}

// SweepResult is the outcome of a GC pass.
type SweepResult struct {
	Rows          int `json:"rows"`
	BlobsDeleted  int `json:"blobs_deleted"`
	BlobsRetained int `json:"blobs_retained"`
}

// DownloadResult describes what a download wrote.
type DownloadResult struct {
	Status       int
	ContentRange string
	Bytes        int64
}

// APIError is a non-success answer of the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return fmt.Sprintf("server answered %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status back onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusBadRequest:
		return common.ErrorInvalidArgument
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusBadGateway:
		return common.ErrorBackingStore
	default:
		return common.ErrorInternal
	}
}

// FileClient talks to one file store server. Token is sent as a bearer
// token on every request.
type FileClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewFileClient(baseURL string, httpClient *http.Client) *FileClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &FileClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *FileClient) SetToken(token string) { c.token = token }

func (c *FileClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}
	return req, nil
}

func (c *FileClient) do(req *http.Request, want int) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != want && !(want == http.StatusOK && resp.StatusCode == http.StatusPartialContent) {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

// Upload sends size bytes of r as a new file. size < 0 streams with chunked
// encoding.
func (c *FileClient) Upload(ctx context.Context, lifecycle, name string, r io.Reader, size int64) (*UploadResult, error) {
	path := "/api/v1/files/" + url.PathEscape(lifecycle) + "?name=" + url.QueryEscape(name)
	req, err := c.newRequest(ctx, http.MethodPost, path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = size

	resp, err := c.do(req, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &out, nil
}

// Download writes the file, or the region selected by rangeHeader, to w.
func (c *FileClient) Download(ctx context.Context, id, rangeHeader string, w io.Writer) (*DownloadResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, err
	}
	return &DownloadResult{Status: resp.StatusCode, ContentRange: resp.Header.Get("Content-Range"), Bytes: n}, nil
}

// Size returns the file size via HEAD.
func (c *FileClient) Size(ctx context.Context, id string) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "/api/v1/files/"+url.PathEscape(id), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, errors.New("server sent no content length")
	}
	return size, nil
}

// Delete tombstones one ephemeral file.
func (c *FileClient) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/files/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// DeleteMany tombstones several ephemeral files at once.
func (c *FileClient) DeleteMany(ctx context.Context, ids []string) error {
	b, err := json.Marshal(map[string][]string{"file_ids": ids})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/files/ephemeral/tombstone", strings.NewReader(string(b)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// DeleteAll tombstones every ephemeral file.
func (c *FileClient) DeleteAll(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/files/ephemeral", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Collect runs one GC pass; batch <= 0 uses the server default.
func (c *FileClient) Collect(ctx context.Context, batch int) (*SweepResult, error) {
	path := "/api/v1/admin/gc"
	if batch > 0 {
		path += "?batch=" + strconv.Itoa(batch)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out SweepResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gc response: %w", err)
	}
	return &out, nil
}
