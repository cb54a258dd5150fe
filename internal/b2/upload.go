package b2

import (
	"context"
	"crypto/sha1" //nolint:gosec // B2 mandates SHA-1 content hashes
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// DefaultContentType lets the server sniff the content type.
	DefaultContentType = "b2/x-auto"

	headerFileName    = "X-Bz-File-Name"
	headerContentSHA1 = "X-Bz-Content-Sha1"
	infoHeaderPrefix  = "X-Bz-Info-"

	// maxInfoEntries is the vendor limit on per-object metadata headers.
	maxInfoEntries = 10
)

// uploadURLRecord mirrors the b2_get_upload_url JSON response.
type uploadURLRecord struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

// UploadTicketFor fetches a fresh upload ticket scoped to the bucket. A
// ticket stays valid for a window on the server side, but Upload fetches a
// new one per call and never reuses tickets across calls.
func (c *Client) UploadTicketFor(ctx context.Context, bucketID string) (*UploadTicket, error) {
	c.logger.Debug("fetching upload ticket", slog.String("bucket_id", bucketID))

	params := url.Values{}
	params.Set("bucketId", bucketID)

	resp, err := c.apiGet(ctx, "b2_get_upload_url", params, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rec uploadURLRecord
	if decErr := json.NewDecoder(resp.Body).Decode(&rec); decErr != nil {
		return nil, fmt.Errorf("b2: decoding upload ticket response: %w", decErr)
	}

	if rec.UploadURL == "" || rec.AuthorizationToken == "" {
		return nil, fmt.Errorf("b2: incomplete upload ticket response")
	}

	return &UploadTicket{
		BucketID:  rec.BucketID,
		UploadURL: rec.UploadURL,
		Token:     rec.AuthorizationToken,
	}, nil
}

// UploadOptions are the optional parameters for Upload. A zero value means
// DefaultContentType and no metadata.
type UploadOptions struct {
	ContentType string
	Info        map[string]string
}

// Upload stores the contents of r as name in the bucket, overwriting any
// existing object with the same name (B2 keeps the old version).
//
// The source is fully buffered in memory because the content SHA-1 must be
// known before the request is sent. The upload takes two round trips: a
// ticket fetch against the API host, then a raw POST to the ticket's host
// with the ticket's token. Any non-200 from that POST fails with
// *UploadError carrying status and body.
func (c *Client) Upload(ctx context.Context, bucket *Bucket, name string, r io.Reader, opts UploadOptions) (*Object, error) {
	if err := validateInfo(opts.Info); err != nil {
		return nil, err
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("b2: reading upload source: %w", err)
	}

	sum := sha1.Sum(data) //nolint:gosec // B2 mandates SHA-1 content hashes

	headers := http.Header{}
	headers.Set(headerFileName, encodePathSegments(name))
	headers.Set("Content-Type", contentType)
	headers.Set(headerContentSHA1, hex.EncodeToString(sum[:]))

	for key, value := range opts.Info {
		headers.Set(infoHeaderPrefix+key, value)
	}

	c.logger.Info("uploading object",
		slog.String("bucket_id", bucket.ID),
		slog.String("name", name),
		slog.Int("size", len(data)),
	)

	ticket, err := c.UploadTicketFor(ctx, bucket.ID)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		method:  http.MethodPost,
		ep:      uploadEndpoint(ticket),
		rawBody: data,
		headers: headers,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		c.logger.Error("upload failed",
			slog.String("name", name),
			slog.Int("status", resp.StatusCode),
		)

		return nil, &UploadError{Status: resp.StatusCode, Body: string(body)}
	}

	obj, err := decodeObject(resp.Body, bucket)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("upload complete",
		slog.String("name", obj.Name),
		slog.String("file_id", obj.FileID),
	)

	return obj, nil
}

// validateInfo enforces the vendor metadata limits before any network I/O:
// at most maxInfoEntries items, keys restricted to [A-Za-z0-9_-] so the
// emitted X-Bz-Info-* headers are well formed.
func validateInfo(info map[string]string) error {
	if len(info) > maxInfoEntries {
		return fmt.Errorf("b2: too many metadata entries: %d (limit %d)", len(info), maxInfoEntries)
	}

	for key := range info {
		if key == "" {
			return fmt.Errorf("b2: empty metadata key")
		}

		for _, r := range key {
			if !isInfoKeyRune(r) {
				return fmt.Errorf("b2: invalid metadata key %q: allowed characters are A-Z, a-z, 0-9, '-' and '_'", key)
			}
		}
	}

	return nil
}

func isInfoKeyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	default:
		return false
	}
}
