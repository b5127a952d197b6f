package services

import (
	"context"
	"errors"
)

// DefaultDelimiter joins batch segments. It is unlikely to appear in UI strings.
const DefaultDelimiter = "§§§"

// Backend failure modes. Implementations wrap one of these so the engine can
// tell throttling apart from outages and garbage.
var (
	ErrRateLimited           = errors.New("translation backend rate limited")
	ErrBackendUnavailable    = errors.New("translation backend unavailable")
	ErrMalformedResponse     = errors.New("malformed translation response")
	ErrDegenerateTranslation = errors.New("translation empty or identical to source")

	// ErrMissingLanguage is the only error the public translate operations return.
	ErrMissingLanguage = errors.New("source and target language are required")
)

// BackendRequest is one call to an external translation backend.
// In batch mode Text holds segments joined by Delimiter and the backend must
// answer with the same number of segments joined the same way.
type BackendRequest struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	Batch          bool
	Delimiter      string
}

// TranslationBackend is an opaque text translation service.
type TranslationBackend interface {
	Translate(ctx context.Context, req BackendRequest) (string, error)
	Name() string
}

// IsRateLimited reports whether err signals remote throttling.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// errorKind maps an error onto the label used for error counters.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrDegenerateTranslation):
		return "degenerate"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unavailable"
	}
}

// batchInstructions tells a backend how to treat a delimiter-joined payload.
func batchInstructions(delimiter string) string {
	return "The text contains several independent segments separated by " + delimiter +
		". Translate each segment on its own and return them in the same order, separated by " + delimiter +
		" with no numbering or extra text."
}
