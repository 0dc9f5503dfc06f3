package domain

import (
	"strings"
	"time"
)

// Source identifies which upstream produced an event.
type Source string

const (
	// SourceFeed marks events from the structured GeoJSON feed.
	SourceFeed Source = "feed"
	// SourceScrape marks events scraped from the regional authority's site.
	SourceScrape Source = "scrape"
)

// Bounds of the monitored region (Philippines): 4.5°N–21°N, 116°E–127°E.
const (
	RegionMinLat = 4.5
	RegionMaxLat = 21.0
	RegionMinLon = 116.0
	RegionMaxLon = 127.0
)

// Event is the canonical earthquake record shared by both sources.
// OccurredAt and CreatedAt are epoch milliseconds. A persisted event is
// never mutated; the store write is gated by an existence check on ID.
type Event struct {
	ID         string            `json:"id"`
	Source     Source            `json:"source"`
	Magnitude  float64           `json:"magnitude"`
	Latitude   float64           `json:"latitude"`
	Longitude  float64           `json:"longitude"`
	Depth      float64           `json:"depth"`
	OccurredAt int64             `json:"time"`
	Place      string            `json:"place"`
	Category   string            `json:"category"`
	DetailURL  string            `json:"url,omitempty"`
	Raw        map[string]string `json:"raw,omitempty"`
	CreatedAt  int64             `json:"createdAt,omitempty"`
}

// keySanitizer replaces characters that are illegal in store key paths.
var keySanitizer = strings.NewReplacer(
	".", "_",
	"#", "_",
	"$", "_",
	"[", "_",
	"]", "_",
	"/", "_",
)

// SanitizeID makes an identifier safe to use as a store key path segment.
func SanitizeID(id string) string {
	return keySanitizer.Replace(id)
}

// ValidCoordinates reports whether lat/lon are in geographic range.
// Records failing this are dropped before persistence.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// InMonitoredRegion reports whether the coordinates fall inside the
// monitored bounding box. Applied to feed results fetched in recent-window
// mode; the regional query and the scrape are already region-scoped.
func InMonitoredRegion(lat, lon float64) bool {
	return lat >= RegionMinLat && lat <= RegionMaxLat &&
		lon >= RegionMinLon && lon <= RegionMaxLon
}

// PartitionDate derives the UTC calendar date partition for an event time.
func PartitionDate(occurredAtMillis int64) string {
	return time.UnixMilli(occurredAtMillis).UTC().Format("2006-01-02")
}

// OccurredTime returns the event origin time in UTC.
func (e Event) OccurredTime() time.Time {
	return time.UnixMilli(e.OccurredAt).UTC()
}
