package serial

import "github.com/rotisserie/eris"

var ErrShortRead = eris.New("serial: short read")

// Stream is an in-memory byte buffer with a single read/write cursor.
type Stream struct {
	buf []byte
	pos int
}

func NewStream(b []byte) *Stream {
	return &Stream{buf: b}
}

func (s *Stream) Bytes() []byte { return s.buf }
func (s *Stream) Len() int      { return len(s.buf) }
func (s *Stream) Position() int { return s.pos }

func (s *Stream) SetPosition(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.buf) {
		pos = len(s.buf)
	}
	s.pos = pos
}

// Remaining reports how many bytes are left after the cursor.
func (s *Stream) Remaining() int { return len(s.buf) - s.pos }

// Write overwrites from the cursor and grows the buffer when needed.
func (s *Stream) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		if end > cap(s.buf) {
			grown := make([]byte, len(s.buf), 2*end)
			copy(grown, s.buf)
			s.buf = grown
		}
		s.buf = s.buf[:end]
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

// Read returns the next n bytes without copying.
func (s *Stream) Read(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.buf) {
		return nil, eris.Wrapf(ErrShortRead, "want %d bytes at %d, have %d", n, s.pos, len(s.buf)-s.pos)
	}
	out := s.buf[s.pos : s.pos+n]
	s.pos += n
	return out, nil
}
