package lnwire

import "github.com/go-errors/errors"

// ErrMalformedMessage is the sentinel for §7's MalformedMessage taxonomy
// entry. The codec's own decode failures (short reads, unknown message or
// address types) are returned as they occur and do not wrap it.
var ErrMalformedMessage = errors.New("malformed gossip message")
