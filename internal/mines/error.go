package mines

import "errors"

var (
	ErrOutOfBounds          = errors.New("point out of bounds")
	ErrInvalidConfiguration = errors.New("invalid game configuration")
)
