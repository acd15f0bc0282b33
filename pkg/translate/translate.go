// Package translate defines the contract with the translation backend: one
// utterance of encoded audio in, recognized plus translated text (and
// optionally synthesized speech) out.
//
// Errors carry a structured [Code] so callers can branch on failure class —
// in particular [CodeAudioQuality], which the orchestrator uses to decide
// whether resubmitting the untrimmed recording is worthwhile. Never match on
// error message text.
package translate

import (
	"context"
	"errors"
	"fmt"
)

// Request is one utterance submitted for translation.
type Request struct {
	// Audio is the encoded recording.
	Audio []byte

	// MIME is the content type of Audio (e.g. "audio/wav").
	MIME string

	// SourceLang and TargetLang are the two conversation languages
	// (BCP 47 / ISO 639-1 codes). The backend decides which one was spoken.
	SourceLang string
	TargetLang string

	// Premium requests the higher-quality voice tier where the backend
	// supports one. Opaque to this engine.
	Premium bool
}

// Result is a successful backend response.
type Result struct {
	// RecognizedText is the transcription of the submitted audio, with the
	// language the backend detected.
	RecognizedText string
	RecognizedLang string

	// TranslatedText is the translation into the other conversation
	// language.
	TranslatedText string
	TranslatedLang string

	// Audio optionally carries synthesized speech of the translation, with
	// its MIME type. Empty when the backend returns text only.
	Audio     []byte
	AudioMIME string
}

// Provider is a translation backend.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Translate submits one utterance and blocks until the backend responds
	// or ctx is cancelled. Failures should be returned as a [*Error] so the
	// caller can branch on the code.
	Translate(ctx context.Context, req Request) (Result, error)
}

// Code classifies a translation failure.
type Code string

const (
	// CodeAudioQuality means the backend could not make out speech in the
	// submitted audio. Resubmitting a different rendition of the same
	// utterance may help.
	CodeAudioQuality Code = "audio_quality"

	// CodeUnavailable means the backend could not be reached or is down.
	CodeUnavailable Code = "unavailable"

	// CodeInvalidRequest means the request itself was malformed.
	CodeInvalidRequest Code = "invalid_request"

	// CodeInternal is any other backend-side failure.
	CodeInternal Code = "internal"
)

// Error is a translation failure with a machine-readable code.
type Error struct {
	Code    Code
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translate: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("translate: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a coded translation error.
func NewError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// CodeOf extracts the failure code from err, or [CodeInternal] when err is
// not a translation error.
func CodeOf(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

// IsAudioQuality reports whether err is an audio-quality rejection.
func IsAudioQuality(err error) bool {
	return CodeOf(err) == CodeAudioQuality
}
