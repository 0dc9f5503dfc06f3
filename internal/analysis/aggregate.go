// Package analysis aggregates recent events into per-location summaries and
// asks a language model for a situational assessment of them.
package analysis

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

// AggregationWindow bounds the lookback for one analysis pass.
const AggregationWindow = 24 * time.Hour

// maxSamplesPerLocation caps how many raw events a location summary carries,
// keeping the prompt and the persisted record bounded.
const maxSamplesPerLocation = 50

var (
	locationStripRe = regexp.MustCompile(`[.#$/\[\]]`)
	locationSpaceRe = regexp.MustCompile(`\s+`)
)

// sanitizeLocation turns a free-form place label into a stable grouping key
// ("Bogo City, Cebu" -> "Bogo-City,-Cebu"). Empty labels group under
// "Unknown".
func sanitizeLocation(location string) string {
	if location == "" {
		return "Unknown"
	}
	key := locationStripRe.ReplaceAllString(location, "")
	key = locationSpaceRe.ReplaceAllString(key, "-")
	if key == "" {
		return "Unknown"
	}
	return key
}

// EventSample is the per-event slice of fields included in a summary.
type EventSample struct {
	Magnitude float64       `json:"magnitude"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Depth     float64       `json:"depth"`
	DateTime  string        `json:"dateTime"`
	Source    domain.Source `json:"source"`
}

// LocationSummary aggregates one location's events within the window.
type LocationSummary struct {
	TotalEvents  int           `json:"totalEvents"`
	MaxMagnitude float64       `json:"maxMagnitude"`
	AvgMagnitude float64       `json:"avgMagnitude"`
	RiskLevel    string        `json:"riskLevel"`
	Events       []EventSample `json:"events"`
}

// riskLevel classifies a location by its strongest event and event count.
func riskLevel(maxMagnitude float64, totalEvents int) string {
	switch {
	case maxMagnitude >= 6.0:
		return "critical"
	case maxMagnitude >= 5.0 || totalEvents > 20:
		return "high"
	case maxMagnitude >= 4.0 || totalEvents > 10:
		return "moderate"
	default:
		return "low"
	}
}

// Aggregate groups the events that occurred within the window before now by
// sanitized location and summarizes each group. Events are sampled newest
// first.
func Aggregate(events []domain.Event, now time.Time) map[string]LocationSummary {
	cutoff := now.Add(-AggregationWindow).UnixMilli()

	recent := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if e.OccurredAt >= cutoff {
			recent = append(recent, e)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].OccurredAt > recent[j].OccurredAt
	})

	grouped := map[string][]domain.Event{}
	for _, e := range recent {
		key := sanitizeLocation(e.Place)
		grouped[key] = append(grouped[key], e)
	}

	summaries := make(map[string]LocationSummary, len(grouped))
	for key, group := range grouped {
		maxMag := group[0].Magnitude
		sum := 0.0
		for _, e := range group {
			if e.Magnitude > maxMag {
				maxMag = e.Magnitude
			}
			sum += e.Magnitude
		}

		samples := group
		if len(samples) > maxSamplesPerLocation {
			samples = samples[:maxSamplesPerLocation]
		}
		events := make([]EventSample, 0, len(samples))
		for _, e := range samples {
			events = append(events, EventSample{
				Magnitude: e.Magnitude,
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
				Depth:     e.Depth,
				DateTime:  sampleTime(e),
				Source:    e.Source,
			})
		}

		summaries[key] = LocationSummary{
			TotalEvents:  len(group),
			MaxMagnitude: maxMag,
			AvgMagnitude: math.Round(sum/float64(len(group))*100) / 100,
			RiskLevel:    riskLevel(maxMag, len(group)),
			Events:       events,
		}
	}
	return summaries
}

// sampleTime prefers the source's own human-readable timestamp when the
// normalizer recorded one.
func sampleTime(e domain.Event) string {
	if s, ok := e.Raw["dateTimeStr"]; ok && s != "" {
		return s
	}
	return e.OccurredTime().UTC().Format(time.RFC3339)
}
