package entities

import "errors"

// Domain errors for entity and scope cache operations.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrDuplicate     = errors.New("entity already exists")
	ErrCacheNotFound = errors.New("scope cache not found")
)
