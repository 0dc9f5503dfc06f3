package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, "us_7000_ab_cd_e_f_", SanitizeID("us.7000#ab$cd[e]f/"))
	assert.Equal(t, "plain-id", SanitizeID("plain-id"))
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(13.5, 121.0))
	assert.True(t, ValidCoordinates(-90, 180))
	assert.False(t, ValidCoordinates(95, 121.0))
	assert.False(t, ValidCoordinates(13.5, -181))
}

func TestInMonitoredRegion(t *testing.T) {
	assert.True(t, InMonitoredRegion(13.5, 121.0))
	assert.True(t, InMonitoredRegion(4.5, 116.0), "bounds are inclusive")
	assert.True(t, InMonitoredRegion(21.0, 127.0))
	assert.False(t, InMonitoredRegion(35.6, 139.7), "Tokyo is outside")
	assert.False(t, InMonitoredRegion(13.5, 130.0))
}

func TestPartitionDate(t *testing.T) {
	// 2025-10-05T06:28:00Z
	assert.Equal(t, "2025-10-05", PartitionDate(1759645680000))
	// Millisecond before midnight UTC stays on the earlier date.
	assert.Equal(t, "2025-10-04", PartitionDate(1759622399999))
}
