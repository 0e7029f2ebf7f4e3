package pipeline

import "errors"

var (
	// Store errors.
	ErrStoreClosed = errors.New("pipeline: store closed")

	// Not found errors.
	ErrJobNotFound      = errors.New("pipeline: job not found")
	ErrAnalysisNotFound = errors.New("pipeline: analysis not found")
	ErrNoStatus         = errors.New("pipeline: job has no status history")

	// State errors.
	ErrInvalidTransition = errors.New("pipeline: invalid status transition")
	ErrJobFinished       = errors.New("pipeline: job already reached a terminal status")
	ErrAlreadySubmitted  = errors.New("pipeline: job already has a submission handle")

	// Backend errors.
	ErrNoBackend  = errors.New("pipeline: no backend for analysis")
	ErrNotRunning = errors.New("pipeline: job has no running attempt")

	// Configuration errors.
	ErrMissingRoot  = errors.New("pipeline: output root not configured")
	ErrBadChunkSize = errors.New("pipeline: chunk size must be positive")
)
