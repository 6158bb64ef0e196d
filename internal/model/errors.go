package model

import "errors"

var (
	// ErrInvalidArgument is returned for non-positive identifiers, before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCacheUnavailable marks a failing cache store. Readers treat it as a miss.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrRemoteUnavailable marks transport failures and non-success statuses.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrRemoteFormat marks payloads that could not be decoded.
	ErrRemoteFormat = errors.New("remote format error")

	// ErrNotFound is returned when a record does not exist in the cache store.
	ErrNotFound = errors.New("not found")
)
