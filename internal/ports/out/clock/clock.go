package clock

import "time"

// Clock provides time to the application.
// Challenge freshness and lifecycle timestamps are all derived from it.
type Clock interface {
	Now() time.Time
}
