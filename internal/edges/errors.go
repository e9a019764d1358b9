package edges

import "errors"

// Domain errors for annotation edge operations.
var (
	ErrNotFound  = errors.New("annotation edge not found")
	ErrDuplicate = errors.New("annotation edge already exists")
)
