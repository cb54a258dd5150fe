// Package b2 provides a client for the Backblaze B2 object storage API:
// bucket and file operations over the three service hosts resolved by the
// account authorization handshake (API host, download host, and the
// per-upload host handed out with each upload ticket).
package b2

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// errorRecord mirrors the B2 error JSON body.
type errorRecord struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthError is returned when the authorization handshake fails or any call
// comes back 401. The session is invalidated, so the next call re-handshakes.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("b2: authentication failed (HTTP %d, %s): %s", e.Status, e.Code, e.Message)
}

// APIError is any non-success, non-401 response from the API host.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("b2: HTTP %d (%s): %s", e.Status, e.Code, e.Message)
}

// UploadError is returned when the raw POST to the upload host fails.
// Body carries the unparsed response for debugging; a failed upload gives
// no guarantee about partial server-side artifacts.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("b2: upload failed (HTTP %d): %s", e.Status, e.Body)
}

// isSuccess reports whether the B2 API considers the status a success.
func isSuccess(status int) bool {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return true
	default:
		return false
	}
}

// classify converts a non-success response into a typed error.
// 401 maps to *AuthError, everything else to *APIError.
func classify(status int, body []byte) error {
	var rec errorRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		// Non-JSON error body: keep it verbatim as the message.
		rec = errorRecord{Message: string(body)}
	}

	if status == http.StatusUnauthorized {
		return &AuthError{Status: status, Code: rec.Code, Message: rec.Message}
	}

	return &APIError{Status: status, Code: rec.Code, Message: rec.Message}
}
