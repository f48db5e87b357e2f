package guard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestAssert_StrictPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	g := &Guard{Strict: true}
	g.Assert(false, "tick %d in the past", 3)
}

func TestAssert_LenientLogs(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	g := &Guard{Log: log}
	if g.Assert(false, "player %d missing", 7) {
		t.Fatalf("Assert returned true for false condition")
	}
	if !strings.Contains(buf.String(), "player 7 missing") {
		t.Fatalf("log=%q", buf.String())
	}
	if !g.Assert(true, "unused") {
		t.Fatalf("Assert returned false for true condition")
	}
}
