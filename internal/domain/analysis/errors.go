package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies why an analysis failed. Every error returned by the analyzer carries one.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindEmptyResponse
	KindMalformedResponse
	KindTransmission
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindEmptyResponse:
		return "empty_response"
	case KindMalformedResponse:
		return "malformed_response"
	case KindTransmission:
		return "transmission"
	default:
		return "unknown"
	}
}

var (
	ErrNotConfigured     = errors.New("API key is not configured; set it in the environment and redeploy")
	ErrEmptyResponse     = errors.New("the AI returned an empty response; the input might be too complex or contain restricted content")
	ErrMalformedResponse = errors.New("the AI returned incomplete or malformed data; this can happen with very complex requests or a service interruption, please try again")
	ErrUnknown           = errors.New("an unknown error occurred while processing the AI response")

	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("analysis not found")
)

// Error is the classified failure of one analysis.
type Error struct {
	Kind Kind
	// Err is the underlying cause: the transport error for KindTransmission, the parse error for
	// KindMalformedResponse, the recovered value for KindUnknown.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransmission:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "transmission failed"
	case KindMalformedResponse:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", ErrMalformedResponse, e.Err)
		}
		return ErrMalformedResponse.Error()
	default:
		return e.sentinel().Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindConfiguration:
		return ErrNotConfigured
	case KindEmptyResponse:
		return ErrEmptyResponse
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindUnknown:
		return ErrUnknown
	}
	return nil
}

// KindOf reports the kind of err, or KindUnknown when err is not a classified error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
