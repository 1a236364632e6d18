package boxapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/vertextoedge/cloudbox/internal/domain"
)

// Default endpoints
const (
	DefaultBaseURL   = "https://api.box.com/2.0"
	DefaultUploadURL = "https://upload.box.com/api/2.0"

	// RootFolderID is the ID of the account's root folder
	RootFolderID = "0"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
	defaultUserAgent      = "cloudbox/0.1"

	defaultPageSize = 100
	maxPageSize     = 1000

	maxErrorBodySize = 64 * 1024
)

// Common error codes returned by the API
const (
	CodeNotFound       = "not_found"
	CodeItemNameInUse  = "item_name_in_use"
	CodeUnauthorized   = "unauthorized"
	CodeRateLimited    = "rate_limit_exceeded"
	CodeBadRequest     = "bad_request"
	CodeInternalServer = "internal_server_error"
)

// APIError represents an error response from the content API
type APIError struct {
	Type      string `json:"type"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("box api error %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Is maps HTTP status codes, and the error codes that identify a failure
// independently of the status, onto domain errors
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrConflict:
		return e.Status == http.StatusConflict
	case domain.ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Code == CodeUnauthorized
	case domain.ErrRateLimited:
		return e.Status == http.StatusTooManyRequests || e.Code == CodeRateLimited
	case domain.ErrInvalidInput:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// IsRetryable returns true if the request may succeed when repeated
func (e *APIError) IsRetryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeError builds an APIError from a non-2xx response
func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err == nil && len(body) > 0 {
		// Non-JSON bodies leave the fields empty
		_ = json.Unmarshal(body, apiErr)
	}

	if apiErr.Status == 0 {
		apiErr.Status = resp.StatusCode
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	if apiErr.RequestID == "" {
		apiErr.RequestID = resp.Header.Get("Box-Request-Id")
	}

	return apiErr
}

// parseRetryAfter returns the Retry-After delay in seconds, if present
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// fileCollection is the envelope returned by upload endpoints
type fileCollection struct {
	TotalCount int           `json:"total_count"`
	Entries    []domain.File `json:"entries"`
}

// versionCollection is one page of file versions
type versionCollection struct {
	TotalCount int                  `json:"total_count"`
	Offset     int                  `json:"offset"`
	Limit      int                  `json:"limit"`
	Entries    []domain.FileVersion `json:"entries"`
}

// parentRef references a folder by ID in request bodies
type parentRef struct {
	ID string `json:"id"`
}

// uploadAttributes is the JSON "attributes" part of a multipart upload
type uploadAttributes struct {
	Name              string     `json:"name,omitempty"`
	Parent            *parentRef `json:"parent,omitempty"`
	ContentModifiedAt string     `json:"content_modified_at,omitempty"`
}

type copyRequest struct {
	Parent parentRef `json:"parent"`
	Name   string    `json:"name,omitempty"`
}

type promoteRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}
