package sketch

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a dropped file that is not an image
	ErrValidation = errors.New("please upload an image file")

	// ErrDisabled is returned when the upload surface is not accepting files
	ErrDisabled = errors.New("upload is disabled while a sketch is loaded")

	// ErrNoResponse indicates the inference service returned an empty payload
	ErrNoResponse = errors.New("no response from the analysis service")

	// ErrMalformedResponse is matched by every *MalformedResponseError
	ErrMalformedResponse = errors.New("malformed analysis response")

	// ErrQuotaExceeded indicates the provider throttled the request (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrRender indicates the diagram source failed to compile
	ErrRender = errors.New("diagram render failed")

	// ErrInvalidTransition is returned for actions the current state does not allow
	ErrInvalidTransition = errors.New("invalid state transition")
)

// MalformedResponseError carries why a payload was rejected
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed analysis response: %s: %v", e.Reason, e.Err)
	}
	return "malformed analysis response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// ServiceError wraps a transport, auth or rate-limit failure from the provider.
// Its message is the provider's message, unchanged.
type ServiceError struct {
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return "analysis service error"
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

func (e *ServiceError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.StatusCode == 429
}
