package repository

import "time"

// StartOfTodayMillis returns local midnight of the given instant as epoch
// milliseconds. The today aggregate is midnight-to-midnight in the process's
// current time zone, recomputed on every call.
func StartOfTodayMillis(now time.Time) int64 {
	local := now.Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return midnight.UnixMilli()
}
