package service

import "errors"

// --- Error Definitions ---
var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrUnsupportedExercise = errors.New("unsupported exercise type")
	ErrUserNotFound        = errors.New("user not found")
	ErrAnalysisEngine      = errors.New("analysis engine request failed")
	ErrStorageUpload       = errors.New("failed to upload media to storage")
	ErrStorage             = errors.New("storage operation failed")
	ErrPersistence         = errors.New("failed to save records")
	ErrMediaNotFound       = errors.New("media not found")
)
