package b2

import "time"

// SizeUnknown indicates the API response carried neither a size nor a
// contentLength field for the object.
const SizeUnknown = -1

// Bucket is a named namespace of objects.
type Bucket struct {
	ID   string
	Name string
	Type string // "allPrivate" or "allPublic"
}

// Object is a stored file reconstructed from one API response. It owns no
// network resources; Bucket is a back-reference and is nil for operations
// that do not know the containing bucket (GetObject, HideObject).
type Object struct {
	Name        string
	Size        int64 // SizeUnknown if absent from the response
	ContentSHA1 string
	FileID      string
	UploadedAt  time.Time // zero if absent from the response
	Info        map[string]string
	Bucket      *Bucket
}

// UploadTicket scopes one upload flow to one bucket: a URL on the upload
// host plus a token that replaces the session token for the raw POST.
// Tickets are fetched per upload call and never reused across calls.
type UploadTicket struct {
	BucketID  string
	UploadURL string
	Token     string
}

// fileRecord mirrors the B2 file JSON. Unexported — callers see Object
// via toObject() normalization.
type fileRecord struct {
	FileName        string            `json:"fileName"`
	FileID          string            `json:"fileId"`
	Size            *int64            `json:"size"`
	ContentLength   *int64            `json:"contentLength"`
	ContentSha1     string            `json:"contentSha1"`
	UploadTimestamp int64             `json:"uploadTimestamp"`
	FileInfo        map[string]string `json:"fileInfo"`
}

// toObject normalizes a B2 file record into an Object bound to bucket
// (which may be nil). Size falls back from size to contentLength.
func (r *fileRecord) toObject(bucket *Bucket) Object {
	size := int64(SizeUnknown)
	switch {
	case r.Size != nil:
		size = *r.Size
	case r.ContentLength != nil:
		size = *r.ContentLength
	}

	obj := Object{
		Name:        r.FileName,
		Size:        size,
		ContentSHA1: r.ContentSha1,
		FileID:      r.FileID,
		Info:        r.FileInfo,
		Bucket:      bucket,
	}

	// uploadTimestamp is milliseconds since epoch.
	if r.UploadTimestamp > 0 {
		obj.UploadedAt = time.UnixMilli(r.UploadTimestamp).UTC()
	}

	return obj
}

// bucketRecord mirrors the B2 bucket JSON.
type bucketRecord struct {
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
	BucketType string `json:"bucketType"`
}

// toBucket normalizes a B2 bucket record into a Bucket.
func (r *bucketRecord) toBucket() Bucket {
	return Bucket{
		ID:   r.BucketID,
		Name: r.BucketName,
		Type: r.BucketType,
	}
}
