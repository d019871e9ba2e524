package engine

import "errors"

var (
	// ErrInvalidKey is returned when a key fails the metric-key regex.
	ErrInvalidKey = errors.New("engine: invalid key")
	// ErrInvalidBatch is returned for an empty batch or a point whose
	// value shape does not match the key's configured item_type.
	ErrInvalidBatch = errors.New("engine: invalid batch")
)
