package b2

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// DefaultBucketType is used by CreateBucket when no type is given.
const DefaultBucketType = "allPrivate"

// listBucketsResponse wraps the buckets array from b2_list_buckets.
type listBucketsResponse struct {
	Buckets []bucketRecord `json:"buckets"`
}

// ListBuckets returns all buckets in the account, preserving response order.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	c.logger.Info("listing buckets")

	resp, err := c.apiGet(ctx, "b2_list_buckets", nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var lbr listBucketsResponse
	if decErr := json.NewDecoder(resp.Body).Decode(&lbr); decErr != nil {
		return nil, fmt.Errorf("b2: decoding list buckets response: %w", decErr)
	}

	buckets := make([]Bucket, 0, len(lbr.Buckets))
	for i := range lbr.Buckets {
		buckets = append(buckets, lbr.Buckets[i].toBucket())
	}

	c.logger.Debug("listed buckets", slog.Int("count", len(buckets)))

	return buckets, nil
}

// CreateBucket creates a bucket. bucketType "" defaults to allPrivate.
func (c *Client) CreateBucket(ctx context.Context, name, bucketType string) (*Bucket, error) {
	if bucketType == "" {
		bucketType = DefaultBucketType
	}

	c.logger.Info("creating bucket",
		slog.String("name", name),
		slog.String("type", bucketType),
	)

	body := map[string]any{
		"bucketName": name,
		"bucketType": bucketType,
	}

	resp, err := c.apiPost(ctx, "b2_create_bucket", body, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rec bucketRecord
	if decErr := json.NewDecoder(resp.Body).Decode(&rec); decErr != nil {
		return nil, fmt.Errorf("b2: decoding create bucket response: %w", decErr)
	}

	bucket := rec.toBucket()

	return &bucket, nil
}

// DeleteBucket deletes a bucket by id. The result is true iff the server
// answered 200; other failures resolve to false without an error, except a
// 401 which surfaces as *AuthError.
func (c *Client) DeleteBucket(ctx context.Context, bucketID string) (bool, error) {
	c.logger.Info("deleting bucket", slog.String("bucket_id", bucketID))

	status, err := c.apiPostStatus(ctx, "b2_delete_bucket", map[string]any{"bucketId": bucketID}, true)
	if err != nil {
		return false, err
	}

	return status == http.StatusOK, nil
}
