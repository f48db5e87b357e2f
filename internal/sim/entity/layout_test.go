package entity

import (
	"testing"

	"parkstep.io/internal/sim/serial"
)

func TestLayout_OffsetsAndSize(t *testing.T) {
	for _, k := range KnownKinds() {
		l := LayoutOf(k)
		if l == nil {
			t.Fatalf("no layout for %s", k)
		}
		off := 0
		for _, f := range l.Fields {
			if f.Offset != off {
				t.Fatalf("%s.%s offset=%d want %d", k, f.Name, f.Offset, off)
			}
			off += f.Width
		}
		if l.Size != off {
			t.Fatalf("%s size=%d want %d", k, l.Size, off)
		}
		if got := KindOf(l.New()); got != k {
			t.Fatalf("New for %s produced %s", k, got)
		}
	}
	if LayoutOf(KindNull) != nil {
		t.Fatalf("KindNull has a layout")
	}
}

func TestField_SignedValuesZeroExtend(t *testing.T) {
	g := New(KindGuest).(*Guest)
	g.X = -1
	g.CashInPocket = -2
	l := LayoutOf(KindGuest)
	for _, f := range l.Fields {
		switch f.Name {
		case "x":
			if got := f.Get(g); got != 0xFFFFFFFF {
				t.Fatalf("x=%#x want 0xFFFFFFFF", got)
			}
		case "CashInPocket":
			if got := f.Get(g); got != 0xFFFFFFFE {
				t.Fatalf("CashInPocket=%#x", got)
			}
			f.Set(g, 0x1_0000_0005)
			if g.CashInPocket != 5 {
				t.Fatalf("Set did not truncate: %d", g.CashInPocket)
			}
		}
	}
}

func TestLayout_SerialiseRoundTrip(t *testing.T) {
	v := New(KindVehicle).(*Vehicle)
	v.X, v.Y, v.Z = 10, -20, 30
	v.Velocity = -123456
	v.Peeps[3] = 77
	l := LayoutOf(KindVehicle)
	s := serial.NewSaver()
	l.Serialise(s, v)
	if len(s.Bytes()) != l.Size {
		t.Fatalf("wrote %d bytes want %d", len(s.Bytes()), l.Size)
	}
	out := New(KindVehicle).(*Vehicle)
	ld := serial.NewLoader(s.Bytes())
	l.Serialise(ld, out)
	if err := ld.Err(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if *out != *v {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, v)
	}
}

func TestClone_IsIndependent(t *testing.T) {
	d := New(KindDuck).(*Duck)
	d.TargetX = 4
	c := Clone(d).(*Duck)
	c.TargetX = 9
	if d.TargetX != 4 {
		t.Fatalf("clone aliases source")
	}
}
