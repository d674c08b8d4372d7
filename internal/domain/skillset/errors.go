package skillset

import "errors"

// ErrOutOfBounds is returned by Vector.Validate.
var ErrOutOfBounds = errors.New("rating out of bounds")
