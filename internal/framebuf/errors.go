package framebuf

import "errors"

// ErrClosed is returned by WaitStored after Close.
var ErrClosed = errors.New("framebuf: buffer closed")
