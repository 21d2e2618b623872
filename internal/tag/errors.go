package tag

import "errors"

// ErrTagNameTooShort is returned when a tagmap rule's destination name is
// shorter than the 4-byte ID3 frame-id convention requires.
var ErrTagNameTooShort = errors.New("tag: destination name must be at least 4 characters")
