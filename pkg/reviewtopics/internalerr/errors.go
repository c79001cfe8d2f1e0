package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Inference-time errors. These are carried inside a classification
	// result and never returned from Classify.
	ErrEmptyInput       = errors.New("empty text or no valid tokens after preprocessing")
	ErrNoTopicPredicted = errors.New("no topic could be predicted")

	// Load-time errors. A viewer without a model cannot classify at all.
	ErrMissingArtifact = errors.New("model artifact is missing or could not be loaded")
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// Kind returns a short machine-readable name for a sentinel error, or
// "internal" when err matches none of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrNoTopicPredicted):
		return "no_topic"
	case errors.Is(err, ErrMissingArtifact):
		return "missing_artifact"
	case errors.Is(err, ErrInvalidArtifact):
		return "invalid_artifact"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	}
	return "internal"
}

// Message returns the user-facing text for err: the message of the sentinel
// it wraps, without the wrapping context. Unknown errors keep their own text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, sentinel := range []error{
		ErrEmptyInput,
		ErrNoTopicPredicted,
		ErrMissingArtifact,
		ErrInvalidArtifact,
		ErrInvalidConfig,
		ErrInvalidInput,
		ErrNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
