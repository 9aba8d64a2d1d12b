package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidProvider indicates an unknown capability backend was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a capability backend could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrNotConfigured indicates an optional collaborator was not set up
	ErrNotConfigured = errors.New("not configured")

	// ErrExtractionFailed indicates no text could be extracted from an upload
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrUnsupportedFileType indicates no extractor handles the upload's type
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrWorkerStopped indicates the background pool no longer accepts jobs
	ErrWorkerStopped = errors.New("worker stopped")
)
