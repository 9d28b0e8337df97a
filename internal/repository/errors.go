package repository

import (
	"errors"

	"github.com/prn-tf/aipm-identity/internal/lock"
)

// Repository errors
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a record with the same identity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrExpired indicates the requested session existed but had expired.
	// The record has been removed by the time this is returned.
	ErrExpired = errors.New("expired")
)

// Lock errors
var (
	// ErrLockNotAcquired indicates the collection lock could not be acquired.
	ErrLockNotAcquired = lock.ErrNotAcquired
)
