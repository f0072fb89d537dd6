package shared

import "errors"

// ErrInvalidArgument marks requests that name unknown tables or columns or
// carry values that cannot be decoded.
var ErrInvalidArgument = errors.New("invalid argument")
