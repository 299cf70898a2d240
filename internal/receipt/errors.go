package receipt

import "errors"

var (
	// ErrAttachmentPersist is returned when a source document cannot be written to storage
	ErrAttachmentPersist = errors.New("attachment persist failed")

	// ErrStorageCorrupt is returned by Load when the stored collection cannot be decoded
	ErrStorageCorrupt = errors.New("storage corrupt")

	// ErrPersistWrite wraps failures to rewrite the collection after a mutation.
	// It is only ever logged.
	ErrPersistWrite = errors.New("persist write failed")
)
