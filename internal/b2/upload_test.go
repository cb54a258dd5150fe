package b2

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // mirrors the hash the API mandates
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadCapture records what the fake upload pod received.
type uploadCapture struct {
	auth     string
	headers  http.Header
	body     []byte
	received bool
}

// newUploadService stands up a fake upload pod and an API host whose
// b2_get_upload_url points at it.
func newUploadService(t *testing.T, status int, response string) (*fakeService, *uploadCapture) {
	t.Helper()

	rec := &uploadCapture{}

	uploadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/b2api/v1/b2_upload_file/b1/pod-token", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		rec.auth = r.Header.Get("Authorization")
		rec.headers = r.Header.Clone()
		rec.body = body
		rec.received = true

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(uploadSrv.Close)

	fs := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/b2api/v1/b2_get_upload_url", r.URL.Path)
		assert.Equal(t, "b1", r.URL.Query().Get("bucketId"))

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"bucketId":"b1","uploadUrl":%q,"authorizationToken":"ticket-token"}`,
			uploadSrv.URL+"/b2api/v1/b2_upload_file/b1/pod-token")
	}, nil)

	return fs, rec
}

func TestUpload_TwoPhaseProtocol(t *testing.T) {
	payload := []byte("hello b2 upload")

	fs, rec := newUploadService(t, http.StatusOK, `{
		"fileName":"docs/hello.txt","fileId":"f1","contentLength":15,
		"contentSha1":"ignored","uploadTimestamp":1500000000000
	}`)

	bucket := &Bucket{ID: "b1", Name: "n1"}

	obj, err := fs.client.Upload(context.Background(), bucket, "docs/hello.txt",
		bytes.NewReader(payload), UploadOptions{})
	require.NoError(t, err)

	require.True(t, rec.received)

	// Ticket token, not the session token.
	assert.Equal(t, "ticket-token", rec.auth)

	// Content hash covers exactly the transmitted bytes.
	sum := sha1.Sum(payload) //nolint:gosec
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.headers.Get("X-Bz-Content-Sha1"))
	assert.Equal(t, payload, rec.body, "raw body passthrough, no JSON envelope")

	assert.Equal(t, "docs/hello.txt", rec.headers.Get("X-Bz-File-Name"))
	assert.Equal(t, "b2/x-auto", rec.headers.Get("Content-Type"))

	assert.Equal(t, "docs/hello.txt", obj.Name)
	assert.Equal(t, "f1", obj.FileID)
	assert.Same(t, bucket, obj.Bucket)
}

func TestUpload_FileNameEscaped(t *testing.T) {
	fs, rec := newUploadService(t, http.StatusOK, `{"fileName":"a b.txt","fileId":"f1"}`)

	_, err := fs.client.Upload(context.Background(), &Bucket{ID: "b1"}, "dir/a b.txt",
		strings.NewReader("x"), UploadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "dir/a%20b.txt", rec.headers.Get("X-Bz-File-Name"))
}

func TestUpload_InfoHeaders(t *testing.T) {
	fs, rec := newUploadService(t, http.StatusOK, `{"fileName":"a","fileId":"f1"}`)

	_, err := fs.client.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
		strings.NewReader("x"), UploadOptions{
			ContentType: "text/plain",
			Info:        map[string]string{"author": "me", "src-mtime": "123"},
		})
	require.NoError(t, err)

	assert.Equal(t, "text/plain", rec.headers.Get("Content-Type"))
	assert.Equal(t, "me", rec.headers.Get("X-Bz-Info-author"))
	assert.Equal(t, "123", rec.headers.Get("X-Bz-Info-src-mtime"))
}

func TestUpload_NonOKIsUploadError(t *testing.T) {
	fs, _ := newUploadService(t, http.StatusServiceUnavailable, `{"code":"service_unavailable"}`)

	_, err := fs.client.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
		strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)

	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusServiceUnavailable, upErr.Status)
	assert.Contains(t, upErr.Body, "service_unavailable")
}

func TestUpload_TicketFetchFailure(t *testing.T) {
	fs := newFakeService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":400,"code":"bad_bucket_id","message":"no such bucket"}`))
	}, nil)

	_, err := fs.client.Upload(context.Background(), &Bucket{ID: "nope"}, "a",
		strings.NewReader("x"), UploadOptions{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad_bucket_id", apiErr.Code)
}

func TestUpload_MetadataValidationFailsFast(t *testing.T) {
	// No servers involved: validation errors must fire before network I/O,
	// so a client with an unreachable auth host is fine.
	s := NewSession(testKeyID, testAppKey, nil, nil)
	s.SetAuthURL("http://127.0.0.1:1")
	c := NewClient(s, nil, nil)

	t.Run("too many entries", func(t *testing.T) {
		info := map[string]string{}
		for i := 0; i < 11; i++ {
			info[fmt.Sprintf("key%d", i)] = "v"
		}

		_, err := c.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
			strings.NewReader("x"), UploadOptions{Info: info})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many metadata entries")
	})

	t.Run("invalid key charset", func(t *testing.T) {
		_, err := c.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
			strings.NewReader("x"), UploadOptions{Info: map[string]string{"bad key": "v"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid metadata key")
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := c.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
			strings.NewReader("x"), UploadOptions{Info: map[string]string{"": "v"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty metadata key")
	})
}

func TestValidateInfo(t *testing.T) {
	assert.NoError(t, validateInfo(nil))
	assert.NoError(t, validateInfo(map[string]string{"Ok-Key_9": "v"}))
	assert.Error(t, validateInfo(map[string]string{"sp ace": "v"}))
	assert.Error(t, validateInfo(map[string]string{"ümlaut": "v"}))
}

func TestUploadTicketFor(t *testing.T) {
	fs := newFakeService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/b2api/v1/b2_get_upload_url", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"bucketId":"b1","uploadUrl":"https://pod.example.com/p","authorizationToken":"tok"}`))
	}, nil)

	ticket, err := fs.client.UploadTicketFor(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, &UploadTicket{BucketID: "b1", UploadURL: "https://pod.example.com/p", Token: "tok"}, ticket)
}

func TestUploadTicketFor_Incomplete(t *testing.T) {
	fs := newFakeService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"bucketId":"b1"}`))
	}, nil)

	_, err := fs.client.UploadTicketFor(context.Background(), "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete upload ticket")
}

func TestUpload_HashMatchesForArbitraryPayloads(t *testing.T) {
	payloads := [][]byte{
		{},
		[]byte("a"),
		bytes.Repeat([]byte{0x00, 0xff}, 1024),
	}

	for _, payload := range payloads {
		fs, rec := newUploadService(t, http.StatusOK, `{"fileName":"a","fileId":"f1"}`)

		_, err := fs.client.Upload(context.Background(), &Bucket{ID: "b1"}, "a",
			bytes.NewReader(payload), UploadOptions{})
		require.NoError(t, err)

		sum := sha1.Sum(payload) //nolint:gosec
		assert.Equal(t, hex.EncodeToString(sum[:]), rec.headers.Get("X-Bz-Content-Sha1"))
	}
}
