package vm

import (
	"bufio"
	"io"
)

// StreamObject wraps a native stream (usually an open file). The stream is
// closed when a script closes it or, failing that, when the object is
// swept.
type StreamObject struct {
	objectHeader
	Name     string
	Writable bool

	rw     io.ReadWriteCloser
	reader *bufio.Reader
	closed bool
}

func (s *StreamObject) Kind() ObjectKind { return KindStream }

// Closed reports whether the stream was closed.
func (s *StreamObject) Closed() bool { return s.closed }

// Write writes p. Writing to a closed or read-only stream is a
// ResourceState error.
func (s *StreamObject) Write(p []byte) (int, error) {
	if s.closed {
		return 0, Errorf(ResourceState, "Cannot write to a closed stream.")
	}
	if !s.Writable {
		return 0, Errorf(ResourceState, "Cannot write to a read-only stream.")
	}
	return s.rw.Write(p)
}

// ReadLine reads up to and excluding the next newline. It returns io.EOF
// once the stream is exhausted.
func (s *StreamObject) ReadLine() (string, error) {
	if s.closed {
		return "", Errorf(ResourceState, "Cannot read from a closed stream.")
	}
	if s.reader == nil {
		s.reader = bufio.NewReader(s.rw)
	}
	line, err := s.reader.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return line, err
}

// ReadAll reads the rest of the stream.
func (s *StreamObject) ReadAll() ([]byte, error) {
	if s.closed {
		return nil, Errorf(ResourceState, "Cannot read from a closed stream.")
	}
	if s.reader != nil {
		return io.ReadAll(s.reader)
	}
	return io.ReadAll(s.rw)
}

// Close closes the native stream. Closing twice is a ResourceState error.
func (s *StreamObject) Close() error {
	if s.closed {
		return Errorf(ResourceState, "Stream is already closed.")
	}
	s.closed = true
	return s.rw.Close()
}

func (s *StreamObject) release() {
	if !s.closed {
		s.closed = true
		if err := s.rw.Close(); err != nil {
			log.Warningf("closing collected stream %q: %v", s.Name, err)
		}
	}
}
