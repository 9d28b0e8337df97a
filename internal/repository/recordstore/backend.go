// Package recordstore implements the persistent record store: durable
// whole-collection load/save of JSON records over pluggable backends.
//
// Each collection (users, sessions) is one JSON document mapping record
// identifiers to records. Every save replaces the whole document. Saves of
// different collections are independent; there is no cross-collection
// transaction.
package recordstore

import (
	"context"
	"errors"
)

// Collection names.
const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
)

// CollectionSecrets holds process secrets shared by every instance using a
// remote backend. It is not a record collection of the identity model.
const CollectionSecrets = "secrets"

// Collections lists every collection the service persists.
var Collections = []string{CollectionUsers, CollectionSessions}

// ErrCollectionNotFound is returned by Backend.Read when nothing has been
// stored for the collection yet.
var ErrCollectionNotFound = errors.New("collection not found")

// ErrUnavailable is returned when a collection cannot be read for update.
// Saving over it could discard records the backend still holds.
var ErrUnavailable = errors.New("collection unavailable")

// Backend stores serialized collection documents.
type Backend interface {
	// Read returns the stored document for collection, or ErrCollectionNotFound.
	Read(ctx context.Context, collection string) ([]byte, error)

	// Write replaces the stored document for collection.
	Write(ctx context.Context, collection string, document []byte) error

	// Name identifies the backend in logs.
	Name() string
}
