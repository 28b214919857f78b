package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed upload.
type ErrorKind string

const (
	KindNetwork           ErrorKind = "network_error"
	KindStoreRejected     ErrorKind = "store_rejected"
	KindMalformedResponse ErrorKind = "malformed_response"
	// KindConfiguration marks a failure before any request, such as missing
	// credentials.
	KindConfiguration ErrorKind = "configuration_error"
)

// Sentinels matched by UploadError.Is.
var (
	ErrNetwork           = errors.New("pinning service unreachable")
	ErrStoreRejected     = errors.New("pinning service rejected the request")
	ErrMalformedResponse = errors.New("pinning service returned no content identifier")
)

var (
	ErrMissingCredentials = errors.New("pinata credentials not configured (set PinataJWT or PinataApiKey and PinataSecretKey)")
	ErrUnauthorized       = errors.New("pinata request unauthorized (check credentials)")
)

// UploadError is returned by PinFile for every failure after the request was
// attempted. StatusCode and Message are only set for store_rejected.
type UploadError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *UploadError) Error() string {
	switch e.Kind {
	case KindStoreRejected:
		if e.Message != "" {
			return fmt.Sprintf("upload failed: %d - %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("upload failed: status %d", e.StatusCode)
	case KindMalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("upload failed: malformed response: %v", e.Err)
		}
		return "upload failed: no IPFS hash returned"
	default:
		if e.Err != nil {
			return fmt.Sprintf("upload failed: network error: %v", e.Err)
		}
		return "upload failed: network error"
	}
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is lets errors.Is match an UploadError against the kind sentinels.
func (e *UploadError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrStoreRejected:
		return e.Kind == KindStoreRejected
	case ErrMalformedResponse:
		return e.Kind == KindMalformedResponse
	}
	return false
}

// KindOf returns the kind of an upload error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var ue *UploadError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, ErrMissingCredentials) {
		return KindConfiguration
	}
	return ""
}
