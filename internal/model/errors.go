package model

import "errors"

// Application-wide standard errors
var (
	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")

	// Planning errors (caller-correctable, never retried)
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrPromptTooLong = errors.New("prompt exceeds maximum length")

	// Validation errors
	ErrSafetyValidation = errors.New("narrative failed safety validation")

	// Generation service errors
	ErrGenerationFailed      = errors.New("text generation failed")
	ErrGenerationTimeout     = errors.New("generation service timed out")
	ErrImageGenerationFailed = errors.New("image generation failed")
	ErrImageEmptyResult      = errors.New("image service returned no results")

	// Internal-consistency faults
	ErrPlanMissingProtagonist = errors.New("story plan has no protagonist")

	// History errors
	ErrHistoryWrite  = errors.New("failed to append story to history")
	ErrStoryNotFound = errors.New("story not found")

	// General request/server errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)
