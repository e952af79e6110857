package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationFromSeconds(t *testing.T) {
	d := DurationFromSeconds(213.5)
	assert.Equal(t, int32(0), d.Months)
	assert.Equal(t, int32(0), d.Days)
	assert.Equal(t, int64(213_500_000), d.Microseconds)
	assert.InDelta(t, 213.5, d.Seconds(), 1e-9)
}

func TestDurationSecondsCountsCalendarParts(t *testing.T) {
	d := Duration{Months: 1, Days: 2, Microseconds: 500_000}
	assert.InDelta(t, float64(32*86400)+0.5, d.Seconds(), 1e-9)
}

func TestDurationIsZero(t *testing.T) {
	assert.True(t, Duration{}.IsZero())
	assert.False(t, Duration{Days: 1}.IsZero())
	assert.False(t, DurationFromSeconds(0.001).IsZero())
}
