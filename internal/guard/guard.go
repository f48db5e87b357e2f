package guard

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Guard checks protocol invariants. A strict guard panics on failure;
// otherwise the failure is logged and execution continues.
type Guard struct {
	Strict bool
	Log    logrus.FieldLogger
}

// Assert returns cond. When cond is false it panics or logs.
func (g *Guard) Assert(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if g == nil || g.Strict {
		panic(eris.New(msg))
	}
	if g.Log != nil {
		g.Log.WithField("component", "guard").Error(msg)
	}
	return false
}
