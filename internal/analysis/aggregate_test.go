package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

var aggNow = time.Date(2025, time.October, 5, 12, 0, 0, 0, time.UTC)

func placedEvent(place string, mag float64, age time.Duration) domain.Event {
	return domain.Event{
		ID: "e", Source: domain.SourceFeed,
		Magnitude: mag, Latitude: 13.5, Longitude: 121.0, Depth: 10,
		OccurredAt: aggNow.Add(-age).UnixMilli(), Place: place,
	}
}

func TestAggregate_GroupsBySanitizedLocation(t *testing.T) {
	events := []domain.Event{
		placedEvent("Bogo City, Cebu", 4.1, time.Hour),
		placedEvent("Bogo City, Cebu", 3.2, 2*time.Hour),
		placedEvent("Surigao del Sur", 2.8, 3*time.Hour),
	}

	summaries := Aggregate(events, aggNow)
	require.Len(t, summaries, 2)

	bogo, ok := summaries["Bogo-City,-Cebu"]
	require.True(t, ok, "spaces become dashes in the grouping key")
	assert.Equal(t, 2, bogo.TotalEvents)
	assert.Equal(t, 4.1, bogo.MaxMagnitude)
	assert.Equal(t, 3.65, bogo.AvgMagnitude)
	assert.Equal(t, "moderate", bogo.RiskLevel)
	require.Len(t, bogo.Events, 2)
	assert.Equal(t, 4.1, bogo.Events[0].Magnitude, "samples ordered newest first")

	assert.Contains(t, summaries, "Surigao-del-Sur")
}

func TestAggregate_ExcludesEventsOutsideWindow(t *testing.T) {
	events := []domain.Event{
		placedEvent("Davao", 3.0, 23*time.Hour),
		placedEvent("Davao", 5.5, 25*time.Hour),
	}

	summaries := Aggregate(events, aggNow)
	require.Contains(t, summaries, "Davao")
	assert.Equal(t, 1, summaries["Davao"].TotalEvents)
	assert.Equal(t, 3.0, summaries["Davao"].MaxMagnitude, "the stale M5.5 is ignored")
}

func TestAggregate_CapsSamplesButCountsAll(t *testing.T) {
	var events []domain.Event
	for i := 0; i < 60; i++ {
		events = append(events, placedEvent("Batangas", 2.0, time.Duration(i)*time.Minute))
	}

	summaries := Aggregate(events, aggNow)
	s := summaries["Batangas"]
	assert.Equal(t, 60, s.TotalEvents)
	assert.Len(t, s.Events, 50)
	assert.Equal(t, "high", s.RiskLevel, "swarm of >20 events outranks its magnitudes")
}

func TestAggregate_EmptyPlaceGroupsUnderUnknown(t *testing.T) {
	summaries := Aggregate([]domain.Event{placedEvent("", 3.0, time.Hour)}, aggNow)
	assert.Contains(t, summaries, "Unknown")
}

func TestAggregate_PrefersSourceTimestampString(t *testing.T) {
	e := placedEvent("Albay", 3.0, time.Hour)
	e.Raw = map[string]string{"dateTimeStr": "05 October 2025 - 07:00 PM"}

	summaries := Aggregate([]domain.Event{e}, aggNow)
	require.Len(t, summaries["Albay"].Events, 1)
	assert.Equal(t, "05 October 2025 - 07:00 PM", summaries["Albay"].Events[0].DateTime)
}

func TestSanitizeLocation(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Bogo City, Cebu", "Bogo-City,-Cebu"},
		{"12 km N of Mabini (Batangas)", "12-km-N-of-Mabini-(Batangas)"},
		{"a.b#c$d/e[f]g", "abcdefg"},
		{"", "Unknown"},
		{"#.$", "Unknown"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeLocation(tc.in), "input %q", tc.in)
	}
}

func TestRiskLevel(t *testing.T) {
	cases := []struct {
		maxMag float64
		total  int
		want   string
	}{
		{6.0, 1, "critical"},
		{7.2, 30, "critical"},
		{5.0, 1, "high"},
		{2.0, 21, "high"},
		{4.0, 1, "moderate"},
		{2.0, 11, "moderate"},
		{3.9, 10, "low"},
		{0, 1, "low"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, riskLevel(tc.maxMag, tc.total),
			"maxMag=%v total=%d", tc.maxMag, tc.total)
	}
}
