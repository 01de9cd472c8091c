package worker

import "errors"

// ErrDropped is returned when an event could not be queued.
var ErrDropped = errors.New("event dropped: publish queue full or closed")
