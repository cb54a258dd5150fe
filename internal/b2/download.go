package b2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// ErrDestinationExists is returned by DownloadToFile when the destination
// exists and Overwrite was not set.
var ErrDestinationExists = errors.New("b2: destination file already exists")

// encodePathSegments URL-encodes each segment of a slash-separated path so
// names with spaces or reserved characters survive interpolation into
// request URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// OpenObject starts a download of bucketName/objectName and returns the
// body as a stream. The stream is finite and non-restartable; the caller
// paces reads with whatever chunk size it likes and must close it.
func (c *Client) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	c.logger.Info("downloading object",
		slog.String("bucket", bucketName),
		slog.String("name", objectName),
	)

	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		ep:     downloadEndpoint(),
		action: url.PathEscape(bucketName) + "/" + encodePathSegments(objectName),
	})
	if err != nil {
		return nil, err
	}

	// Downloads require exactly 200, not the generic success set.
	if resp.StatusCode != http.StatusOK {
		return nil, c.failure(resp)
	}

	return resp.Body, nil
}

// Download streams bucketName/objectName into w and returns the number of
// bytes written.
func (c *Client) Download(ctx context.Context, bucketName, objectName string, w io.Writer) (int64, error) {
	rc, err := c.OpenObject(ctx, bucketName, objectName)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("b2: streaming download content: %w", err)
	}

	c.logger.Debug("download complete",
		slog.String("name", objectName),
		slog.Int64("bytes_written", n),
	)

	return n, nil
}

// DownloadOptions control how DownloadToFile treats the destination.
type DownloadOptions struct {
	// Overwrite replaces an existing destination file instead of failing.
	Overwrite bool

	// KeepOnFailure leaves a partially-written destination in place when
	// the download fails. By default the partial file is removed.
	KeepOnFailure bool
}

// DownloadToFile streams bucketName/objectName into destPath.
func (c *Client) DownloadToFile(ctx context.Context, bucketName, objectName, destPath string, opts DownloadOptions) error {
	if !opts.Overwrite {
		if _, err := os.Stat(destPath); err == nil {
			return fmt.Errorf("%w: %s", ErrDestinationExists, destPath)
		}
	}

	rc, err := c.OpenObject(ctx, bucketName, objectName)
	if err != nil {
		return err
	}
	defer rc.Close()

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("b2: creating destination file: %w", err)
	}

	_, copyErr := io.Copy(f, rc)
	closeErr := f.Close()

	if copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		if !opts.KeepOnFailure {
			if rmErr := os.Remove(destPath); rmErr != nil {
				c.logger.Warn("removing partial download failed",
					slog.String("path", destPath),
					slog.String("error", rmErr.Error()),
				)
			}
		}

		return fmt.Errorf("b2: writing %s: %w", destPath, copyErr)
	}

	return nil
}
