package archive

import "errors"

var (
	// ErrNotFound indicates the requested payload does not exist.
	ErrNotFound = errors.New("payload not found")
	// ErrEmptyKey indicates an empty archive key was provided.
	ErrEmptyKey = errors.New("archive key must not be empty")
	// ErrInvalidKey indicates the archive key contains a path traversal segment.
	ErrInvalidKey = errors.New("archive key contains invalid path segment")
)
