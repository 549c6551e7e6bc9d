package state

import "time"

// timeNow is a package-level variable for testability.
var timeNow = time.Now

func isoNow() string {
	return timeNow().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
