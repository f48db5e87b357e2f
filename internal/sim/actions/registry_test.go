package actions

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/sim/serial"
	"parkstep.io/internal/sim/world"
)

func newBufferLogger(w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	return log
}

func TestClone_FidelityForEveryType(t *testing.T) {
	for ty := Type(0); ty < TypeCount; ty++ {
		a := Create(ty)
		if a == nil {
			t.Fatalf("Create(%s) returned nil", ty)
		}
		if a.Type() != ty {
			t.Fatalf("Create(%s).Type()=%s", ty, a.Type())
		}
		b := a.ActionBase()
		b.NetworkID = 0xABCD
		b.Flags = FlagGhost | FlagNetworked
		b.Player = 3
		called := false
		b.Callback = func(Action, *Result) { called = true }

		c, err := Clone(a)
		if err != nil {
			t.Fatalf("clone %s: %v", ty, err)
		}
		orig, _ := Encode(a)
		copied, _ := Encode(c)
		if !bytes.Equal(orig, copied) {
			t.Fatalf("%s clone differs:\n%x\n%x", ty, orig, copied)
		}
		if c == a {
			t.Fatalf("%s clone aliases original", ty)
		}
		c.ActionBase().Callback(c, NewResult())
		if !called {
			t.Fatalf("%s clone lost callback", ty)
		}
	}
}

func TestClone_PayloadSurvives(t *testing.T) {
	a := NewWallPlace(9, world.Coords{X: 64, Y: -96, Z: 16}, 2)
	c, err := Clone(a)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	w := c.(*WallPlace)
	if w.ObjectID != 9 || w.Loc != a.Loc || w.Edge != 2 {
		t.Fatalf("clone=%+v", w)
	}
	w.Loc.X = 0
	if a.Loc.X != 64 {
		t.Fatalf("clone shares memory with original")
	}
}

func TestDecode_UnknownAndShort(t *testing.T) {
	if _, err := Decode(TypeCount, serial.NewLoader(nil)); err == nil {
		t.Fatalf("unknown type decoded")
	}
	if _, err := Decode(TypeWallPlace, serial.NewLoader([]byte{0, 1})); err == nil {
		t.Fatalf("short payload decoded")
	}
}

func TestLogParams(t *testing.T) {
	a := NewCheatSet(CheatAddMoney, 500)
	if got, want := LogParams(a), "networkId=0, flags=0, playerId=-1, cheat=2, param=500"; got != want {
		t.Fatalf("params=%q want %q", got, want)
	}
}
