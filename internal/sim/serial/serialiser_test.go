package serial

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type sample struct {
	a  uint8
	b  uint16
	c  uint32
	d  uint64
	e  int8
	f  int16
	g  int32
	h  int64
	ok bool
	s  string
	bs []byte
}

func (v *sample) visit(s *Serialiser) {
	s.U8("a", &v.a)
	s.U16("b", &v.b)
	s.U32("c", &v.c)
	s.U64("d", &v.d)
	s.I8("e", &v.e)
	s.I16("f", &v.f)
	s.I32("g", &v.g)
	s.I64("h", &v.h)
	s.Bool("ok", &v.ok)
	s.String("s", &v.s)
	s.Bytes32("bs", &v.bs)
}

func TestSerialiser_SaveLoadRoundTrip(t *testing.T) {
	in := sample{a: 1, b: 0x0203, c: 0x04050607, d: 1 << 40, e: -1, f: -300, g: -70000, h: -1 << 50, ok: true, s: "Park", bs: []byte{9, 8, 7}}
	saver := NewSaver()
	in.visit(saver)
	if err := saver.Err(); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out sample
	loader := NewLoader(saver.Bytes())
	out.visit(loader)
	if err := loader.Err(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loader.Remaining() != 0 {
		t.Fatalf("remaining=%d want 0", loader.Remaining())
	}
	if out.a != in.a || out.b != in.b || out.c != in.c || out.d != in.d || out.e != in.e || out.f != in.f ||
		out.g != in.g || out.h != in.h || out.ok != in.ok || out.s != in.s || !bytes.Equal(out.bs, in.bs) {
		t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestSerialiser_BigEndian(t *testing.T) {
	v := uint32(0x01020304)
	s := NewSaver()
	s.U32("v", &v)
	if got := s.Bytes(); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("bytes=%v", got)
	}
}

func TestSerialiser_ShortReadIsSticky(t *testing.T) {
	l := NewLoader([]byte{0xAA})
	var a uint16
	var b uint8
	l.U16("a", &a)
	l.U8("b", &b)
	if !errors.Is(l.Err(), ErrShortRead) {
		t.Fatalf("err=%v want ErrShortRead", l.Err())
	}
	if a != 0 || b != 0 {
		t.Fatalf("values after failure: a=%d b=%d", a, b)
	}
}

func TestSerialiser_LogMode(t *testing.T) {
	x := uint16(7)
	name := "Bob"
	neg := int32(-4)
	l := NewLogger()
	l.U16("x", &x)
	l.String("name", &name)
	l.I32("neg", &neg)
	if got, want := l.Text(), `x=7, name="Bob", neg=-4`; got != want {
		t.Fatalf("text=%q want %q", got, want)
	}
	if len(l.Bytes()) != 0 {
		t.Fatalf("log mode wrote binary output")
	}
}

func TestSerialiser_StringTooLong(t *testing.T) {
	s := NewSaver()
	long := strings.Repeat("x", 70000)
	s.String("long", &long)
	if s.Err() == nil {
		t.Fatalf("expected error for oversized string")
	}
}
