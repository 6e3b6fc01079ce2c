package store

import (
	"fmt"

	"github.com/go-kivik/kivik/v4"

	"oasgo.dev/core/record"
)

// ConflictError is returned when a write loses an optimistic-concurrency
// race: the revision supplied no longer matches the document's current
// revision in CouchDB.
type ConflictError struct {
	Guid record.Guid
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: conflict writing %s", e.Guid)
}

// NotFoundError is returned when a requested guid has no document.
type NotFoundError struct {
	Guid record.Guid
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s not found", e.Guid)
}

// TransportError wraps any other CouchDB failure: connection refused, auth
// rejected, timeout.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classify turns a raw kivik error into one of the store package's own
// error types, based on the HTTP status CouchDB responded with.
func classify(guid record.Guid, op string, err error) error {
	if err == nil {
		return nil
	}
	switch kivik.HTTPStatus(err) {
	case 409:
		return &ConflictError{Guid: guid}
	case 404:
		return &NotFoundError{Guid: guid}
	default:
		return &TransportError{Op: op, Err: err}
	}
}
