package model

// ExpirationAt returns the deadline now+ttl in POSIX milliseconds.
// A ttl <= 0 yields 0, the explicit permanent marker.
func ExpirationAt(nowMillis int64, ttlMillis int64) int64 {
	if ttlMillis <= 0 {
		return 0
	}
	return nowMillis + ttlMillis
}

// IsVisible reports whether a row with the given expiration is visible at now.
// Permanent rows (0, or SQL NULL scanned as 0) are always visible.
func IsVisible(expiration int64, nowMillis int64) bool {
	return expiration == 0 || expiration > nowMillis
}
