package fltmodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUsageLookback(t *testing.T) {
	cases := []struct {
		in       string
		wantName string
		wantDur  time.Duration
	}{
		{"1h", "1h", time.Hour},
		{"24h", "24h", 24 * time.Hour},
		{"7d", "7d", 7 * 24 * time.Hour},
		{"30d", "30d", 30 * 24 * time.Hour},
		{"", "24h", 24 * time.Hour},
		{"90d", "24h", 24 * time.Hour},
		{"bogus", "24h", 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			name, dur := UsageLookback(tc.in)
			assert.Equal(t, tc.wantName, name)
			assert.Equal(t, tc.wantDur, dur)
		})
	}
}

func TestIsValidDeviceType(t *testing.T) {
	for _, dt := range DeviceTypes {
		assert.True(t, IsValidDeviceType(dt))
	}
	assert.False(t, IsValidDeviceType("toaster"))
	assert.False(t, IsValidDeviceType(""))
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusActive))
	assert.True(t, IsValidStatus(StatusInactive))
	assert.True(t, IsValidStatus(StatusMaintenance))
	assert.False(t, IsValidStatus("sleeping"))
	assert.False(t, IsValidStatus(""))
}
