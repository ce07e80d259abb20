// errors/evaluation_errors.go
package errors

import "errors"

var (
	ErrAttributeValidation       = errors.New("attribute validation failed")
	ErrPipelineFailure           = errors.New("decision pipeline failure")
	ErrSafetyPipelineUnavailable = errors.New("safety pipeline unavailable")
	ErrConflictResolutionFailure = errors.New("conflict resolution failed")
	ErrCacheBackend              = errors.New("cache backend failure")

	ErrInvalidRequestData = errors.New("invalid request data")
	ErrInternalServer     = errors.New("internal server error")
)
