package serial

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

type Mode uint8

const (
	ModeSave Mode = iota
	ModeLoad
	ModeLog
)

func (m Mode) String() string {
	switch m {
	case ModeSave:
		return "save"
	case ModeLoad:
		return "load"
	case ModeLog:
		return "log"
	default:
		return "unknown"
	}
}

// Serialiser reads or writes tagged values over a Stream. One visit
// function serves the wire format, the save format and the text log.
type Serialiser struct {
	mode   Mode
	stream *Stream
	text   strings.Builder
	fields int
	err    error
}

func NewSaver() *Serialiser {
	return &Serialiser{mode: ModeSave, stream: NewStream(nil)}
}

func NewLoader(b []byte) *Serialiser {
	return &Serialiser{mode: ModeLoad, stream: NewStream(b)}
}

func NewStreamSaver(s *Stream) *Serialiser {
	return &Serialiser{mode: ModeSave, stream: s}
}

func NewStreamLoader(s *Stream) *Serialiser {
	return &Serialiser{mode: ModeLoad, stream: s}
}

func NewLogger() *Serialiser {
	return &Serialiser{mode: ModeLog, stream: NewStream(nil)}
}

func (s *Serialiser) Mode() Mode      { return s.mode }
func (s *Serialiser) IsSaving() bool  { return s.mode == ModeSave }
func (s *Serialiser) IsLoading() bool { return s.mode == ModeLoad }
func (s *Serialiser) IsLogging() bool { return s.mode == ModeLog }
func (s *Serialiser) Stream() *Stream { return s.stream }
func (s *Serialiser) Err() error      { return s.err }
func (s *Serialiser) Bytes() []byte   { return s.stream.Bytes() }
func (s *Serialiser) Text() string    { return s.text.String() }
func (s *Serialiser) Fail(err error)  { s.setErr(err) }
func (s *Serialiser) Remaining() int  { return s.stream.Remaining() }

func (s *Serialiser) setErr(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *Serialiser) logField(tag string, v any) {
	if s.fields > 0 {
		s.text.WriteString(", ")
	}
	s.fields++
	fmt.Fprintf(&s.text, "%s=%v", tag, v)
}

func (s *Serialiser) put(b []byte) {
	_, _ = s.stream.Write(b)
}

func (s *Serialiser) take(tag string, n int) []byte {
	if s.err != nil {
		return nil
	}
	b, err := s.stream.Read(n)
	if err != nil {
		s.setErr(eris.Wrapf(err, "field %s", tag))
		return nil
	}
	return b
}

func (s *Serialiser) U8(tag string, v *uint8) {
	switch s.mode {
	case ModeSave:
		s.put([]byte{*v})
	case ModeLoad:
		if b := s.take(tag, 1); b != nil {
			*v = b[0]
		} else {
			*v = 0
		}
	case ModeLog:
		s.logField(tag, *v)
	}
}

func (s *Serialiser) U16(tag string, v *uint16) {
	switch s.mode {
	case ModeSave:
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], *v)
		s.put(tmp[:])
	case ModeLoad:
		if b := s.take(tag, 2); b != nil {
			*v = binary.BigEndian.Uint16(b)
		} else {
			*v = 0
		}
	case ModeLog:
		s.logField(tag, *v)
	}
}

func (s *Serialiser) U32(tag string, v *uint32) {
	switch s.mode {
	case ModeSave:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], *v)
		s.put(tmp[:])
	case ModeLoad:
		if b := s.take(tag, 4); b != nil {
			*v = binary.BigEndian.Uint32(b)
		} else {
			*v = 0
		}
	case ModeLog:
		s.logField(tag, *v)
	}
}

func (s *Serialiser) U64(tag string, v *uint64) {
	switch s.mode {
	case ModeSave:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], *v)
		s.put(tmp[:])
	case ModeLoad:
		if b := s.take(tag, 8); b != nil {
			*v = binary.BigEndian.Uint64(b)
		} else {
			*v = 0
		}
	case ModeLog:
		s.logField(tag, *v)
	}
}

func (s *Serialiser) I8(tag string, v *int8) {
	if s.mode == ModeLog {
		s.logField(tag, *v)
		return
	}
	u := uint8(*v)
	s.U8(tag, &u)
	*v = int8(u)
}

func (s *Serialiser) I16(tag string, v *int16) {
	if s.mode == ModeLog {
		s.logField(tag, *v)
		return
	}
	u := uint16(*v)
	s.U16(tag, &u)
	*v = int16(u)
}

func (s *Serialiser) I32(tag string, v *int32) {
	if s.mode == ModeLog {
		s.logField(tag, *v)
		return
	}
	u := uint32(*v)
	s.U32(tag, &u)
	*v = int32(u)
}

func (s *Serialiser) I64(tag string, v *int64) {
	if s.mode == ModeLog {
		s.logField(tag, *v)
		return
	}
	u := uint64(*v)
	s.U64(tag, &u)
	*v = int64(u)
}

func (s *Serialiser) Bool(tag string, v *bool) {
	if s.mode == ModeLog {
		s.logField(tag, *v)
		return
	}
	var u uint8
	if *v {
		u = 1
	}
	s.U8(tag, &u)
	*v = u != 0
}

// String is length-prefixed with a u16.
func (s *Serialiser) String(tag string, v *string) {
	switch s.mode {
	case ModeSave:
		if len(*v) > math.MaxUint16 {
			s.setErr(eris.Errorf("serial: string %s too long (%d bytes)", tag, len(*v)))
			return
		}
		n := uint16(len(*v))
		s.U16(tag, &n)
		s.put([]byte(*v))
	case ModeLoad:
		var n uint16
		s.U16(tag, &n)
		b := s.take(tag, int(n))
		*v = string(b)
	case ModeLog:
		s.logField(tag, fmt.Sprintf("%q", *v))
	}
}

// Bytes is length-prefixed with a u32. Loaded slices are copies.
func (s *Serialiser) Bytes32(tag string, v *[]byte) {
	switch s.mode {
	case ModeSave:
		n := uint32(len(*v))
		s.U32(tag, &n)
		s.put(*v)
	case ModeLoad:
		var n uint32
		s.U32(tag, &n)
		b := s.take(tag, int(n))
		if b == nil {
			*v = nil
			return
		}
		*v = append([]byte(nil), b...)
	case ModeLog:
		s.logField(tag, fmt.Sprintf("<%d bytes>", len(*v)))
	}
}

// Raw writes or reads an unprefixed block of n bytes.
func (s *Serialiser) Raw(tag string, v []byte) {
	switch s.mode {
	case ModeSave:
		s.put(v)
	case ModeLoad:
		if b := s.take(tag, len(v)); b != nil {
			copy(v, b)
		}
	case ModeLog:
		s.logField(tag, fmt.Sprintf("<%d bytes>", len(v)))
	}
}
