package validation

import internal_errors "github.com/itchan-dev/blog/shared/errors"

// ErrPayloadTooLarge is returned when the request body exceeds size limits
var ErrPayloadTooLarge = internal_errors.ErrPayloadTooLarge
