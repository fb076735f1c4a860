package helper

import "time"

// NowMillis returns the current wall clock time in Unix milliseconds.
// All expiration deadlines in both stores are compared against this scale.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
