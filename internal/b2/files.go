package b2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

// listFilesResponse wraps one page of b2_list_file_names or
// b2_list_file_versions.
type listFilesResponse struct {
	Files        []fileRecord `json:"files"`
	NextFileName *string      `json:"nextFileName"`
	NextFileID   *string      `json:"nextFileId"`
}

// ListObjectsOptions are the optional cursor parameters for ListObjects.
type ListObjectsOptions struct {
	StartFileName string
	MaxFileCount  int
}

// ObjectPage is one page of objects plus the continuation cursor. An empty
// NextFileName means the listing is complete; otherwise callers loop,
// passing it back as StartFileName.
type ObjectPage struct {
	Objects      []Object
	NextFileName string
}

// ListObjects returns one page of objects in the bucket, preserving
// response order. Pagination is explicit: the driver never drains the
// cursor on the caller's behalf.
func (c *Client) ListObjects(ctx context.Context, bucket *Bucket, opts ListObjectsOptions) (*ObjectPage, error) {
	c.logger.Info("listing objects",
		slog.String("bucket_id", bucket.ID),
		slog.String("start_file_name", opts.StartFileName),
	)

	params := url.Values{}
	params.Set("bucketId", bucket.ID)

	if opts.StartFileName != "" {
		params.Set("startFileName", opts.StartFileName)
	}

	if opts.MaxFileCount > 0 {
		params.Set("maxFileCount", strconv.Itoa(opts.MaxFileCount))
	}

	resp, err := c.apiGet(ctx, "b2_list_file_names", params, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lfr listFilesResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lfr); decErr != nil {
		return nil, fmt.Errorf("b2: decoding list objects response: %w", decErr)
	}

	page := &ObjectPage{Objects: make([]Object, 0, len(lfr.Files))}
	for i := range lfr.Files {
		page.Objects = append(page.Objects, lfr.Files[i].toObject(bucket))
	}

	if lfr.NextFileName != nil {
		page.NextFileName = *lfr.NextFileName
	}

	c.logger.Debug("listed objects",
		slog.Int("count", len(page.Objects)),
		slog.Bool("more", page.NextFileName != ""),
	)

	return page, nil
}

// DeleteObject deletes one version of an object. The result is true iff the
// server answered 200; other failures resolve to false without an error,
// except a 401 which surfaces as *AuthError.
func (c *Client) DeleteObject(ctx context.Context, name, fileID string) (bool, error) {
	c.logger.Info("deleting object",
		slog.String("name", name),
		slog.String("file_id", fileID),
	)

	body := map[string]any{
		"fileName": name,
		"fileId":   fileID,
	}

	status, err := c.apiPostStatus(ctx, "b2_delete_file_version", body, false)
	if err != nil {
		return false, err
	}

	return status == http.StatusOK, nil
}

// GetObject retrieves a single object by file id. The returned Object has
// no bucket back-reference because the response does not identify one.
func (c *Client) GetObject(ctx context.Context, fileID string) (*Object, error) {
	c.logger.Info("getting object", slog.String("file_id", fileID))

	params := url.Values{}
	params.Set("fileId", fileID)

	resp, err := c.apiGet(ctx, "b2_get_file_info", params, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeObject(resp.Body, nil)
}

// HideObject hides the named object so it no longer appears in listings,
// without deleting any version.
func (c *Client) HideObject(ctx context.Context, bucketID, name string) (*Object, error) {
	c.logger.Info("hiding object",
		slog.String("bucket_id", bucketID),
		slog.String("name", name),
	)

	body := map[string]any{
		"bucketId": bucketID,
		"fileName": name,
	}

	resp, err := c.apiPost(ctx, "b2_hide_file", body, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeObject(resp.Body, nil)
}

// ListVersionsOptions are the optional cursor parameters for
// ListObjectVersions. Zero-valued fields are omitted from the request.
type ListVersionsOptions struct {
	StartFileName string
	StartFileID   string
	MaxFileCount  int
}

// VersionPage is one page of object versions plus the continuation cursors.
// Both cursors empty means the listing is complete.
type VersionPage struct {
	Objects      []Object
	NextFileName string
	NextFileID   string
}

// ListObjectVersions returns one page of all versions of all objects in the
// bucket, preserving response order.
func (c *Client) ListObjectVersions(ctx context.Context, bucketID string, opts ListVersionsOptions) (*VersionPage, error) {
	c.logger.Info("listing object versions", slog.String("bucket_id", bucketID))

	params := url.Values{}
	params.Set("bucketId", bucketID)

	if opts.StartFileName != "" {
		params.Set("startFileName", opts.StartFileName)
	}

	if opts.StartFileID != "" {
		params.Set("startFileId", opts.StartFileID)
	}

	if opts.MaxFileCount > 0 {
		params.Set("maxFileCount", strconv.Itoa(opts.MaxFileCount))
	}

	resp, err := c.apiGet(ctx, "b2_list_file_versions", params, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lfr listFilesResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lfr); decErr != nil {
		return nil, fmt.Errorf("b2: decoding list versions response: %w", decErr)
	}

	page := &VersionPage{Objects: make([]Object, 0, len(lfr.Files))}
	for i := range lfr.Files {
		page.Objects = append(page.Objects, lfr.Files[i].toObject(nil))
	}

	if lfr.NextFileName != nil {
		page.NextFileName = *lfr.NextFileName
	}

	if lfr.NextFileID != nil {
		page.NextFileID = *lfr.NextFileID
	}

	return page, nil
}

// decodeObject decodes a single file record from r into an Object bound to
// bucket (which may be nil).
func decodeObject(r io.Reader, bucket *Bucket) (*Object, error) {
	var rec fileRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("b2: decoding file record: %w", err)
	}

	obj := rec.toObject(bucket)

	return &obj, nil
}
