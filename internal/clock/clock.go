package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock reports the current time. Session and pending-flow expiry read it
// instead of time.Now so tests can move time forward.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Real returns the wall clock in UTC.
func Real() Clock { return realClock{} }

var Module = fx.Module("clock",
	fx.Provide(Real),
)
