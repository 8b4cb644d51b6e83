package sysinfo

import "errors"

var (
	// ErrAcquire is returned when no snapshot could be produced at all.
	ErrAcquire = errors.New("failed to acquire system info snapshot")

	// ErrUnavailable is returned by a probe whose facet cannot be determined.
	ErrUnavailable = errors.New("facet unavailable")

	// ErrUnknownField is returned when a field key does not name a facet.
	ErrUnknownField = errors.New("unknown field")

	// ErrDuplicateField is returned when a field selection names a facet twice.
	ErrDuplicateField = errors.New("duplicate field")
)
