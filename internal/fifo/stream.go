package fifo

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultMaxLineLength caps a header line. Longer lines are truncated.
const DefaultMaxLineLength = 4096

// Stream reads newline-terminated header lines and exact-size payloads from a
// byte stream. ReadLine and ReadExact must be called from a single goroutine;
// Close may be called from any goroutine and makes a blocked read fail.
type Stream struct {
	rc      io.ReadCloser
	br      *bufio.Reader
	maxLine int

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps rc. maxLine <= 0 selects DefaultMaxLineLength.
func NewStream(rc io.ReadCloser, maxLine int) *Stream {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &Stream{
		rc:      rc,
		br:      bufio.NewReaderSize(rc, 64*1024),
		maxLine: maxLine,
	}
}

// ReadLine returns the next line without its terminating "\n" (and "\r").
//
// Bytes beyond the maximum line length are discarded up to the newline, so a
// desynchronized stream full of binary data cannot grow memory without bound.
func (s *Stream) ReadLine() (string, error) {
	var line []byte
	for {
		chunk, err := s.br.ReadSlice('\n')
		if room := s.maxLine - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return "", mapReadErr(err)
		}
		break
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// ReadExact reads exactly n bytes into a freshly allocated slice.
func (s *Stream) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrStreamFailure, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, mapReadErr(err)
	}
	return buf, nil
}

// Discard reads and drops exactly n bytes.
func (s *Stream) Discard(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrStreamFailure, n)
	}
	if _, err := io.CopyN(io.Discard, s.br, int64(n)); err != nil {
		return mapReadErr(err)
	}
	return nil
}

// Close closes the underlying reader. Idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.rc.Close()
	})
	return s.closeErr
}
