package commerce

import (
	"fmt"
	"strings"
)

// BackendError reports a rejected or malformed response from the shop backend.
type BackendError struct {
	Op      string
	Status  int
	Code    string
	Message string
	// ResourceID is set when the backend points at a conflicting entity.
	ResourceID int64
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("commerce: ")
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// ErrCode exposes a stable error code for handler summaries.
func (e *BackendError) ErrCode() string {
	if e.Code != "" {
		return strings.ToUpper(e.Code)
	}
	return "BACKEND_ERROR"
}

// MediaUploadError wraps the failure of an image upload.
type MediaUploadError struct {
	Err error
}

func (e *MediaUploadError) Error() string {
	return "commerce: media upload failed: " + e.Err.Error()
}

func (e *MediaUploadError) Unwrap() error { return e.Err }

// ErrCode exposes a stable error code for handler summaries.
func (e *MediaUploadError) ErrCode() string { return "MEDIA_UPLOAD_FAILED" }

func missingField(op, field string, status int) *BackendError {
	return &BackendError{
		Op:      op,
		Status:  status,
		Code:    "missing_field",
		Message: fmt.Sprintf("response has no %q", field),
	}
}
