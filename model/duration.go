package model

// Duration is a calendar-aware interval stored as a months/days/microseconds
// triple. Audio lengths only ever populate Microseconds, but the storage
// shape is kept so played positions and track lengths round-trip without
// loss of meaning.
type Duration struct {
	Months       int32 `json:"months"`
	Days         int32 `json:"days"`
	Microseconds int64 `json:"microseconds"`
}

// DurationFromSeconds builds a Duration from a decoded length in seconds.
func DurationFromSeconds(seconds float64) Duration {
	return Duration{Microseconds: int64(seconds * 1e6)}
}

// Seconds reports the interval as fractional seconds, counting months as
// 30 days. Only used for display; storage always keeps the triple.
func (d Duration) Seconds() float64 {
	days := int64(d.Months)*30 + int64(d.Days)
	return float64(days)*86400 + float64(d.Microseconds)/1e6
}

// IsZero reports whether all three components are zero.
func (d Duration) IsZero() bool {
	return d.Months == 0 && d.Days == 0 && d.Microseconds == 0
}
