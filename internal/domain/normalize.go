package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Per-record normalization failure classes. Both drop the record without
// aborting the batch; out-of-window rows are expected and counted separately.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrOutOfWindow     = errors.New("record outside retention window")
)

// ScrapeWindow is how far back the scrape source is trusted. The bulletin
// page lists a rolling recent window, so anything older is stale carry-over.
const ScrapeWindow = 24 * time.Hour

// pst is Philippine Standard Time, a fixed UTC+8 offset with no DST.
var pst = time.FixedZone("PST", 8*60*60)

// bulletinTimeLayout matches rows like "05 October 2025 - 02:28 PM".
const bulletinTimeLayout = "02 January 2006 - 03:04 PM"

// whitespaceRe collapses runs of whitespace, including the non-breaking
// spaces the bulletin page sometimes emits between columns.
var whitespaceRe = regexp.MustCompile(`[\s\x{00a0}]+`)

// FeedFeature is one feature from the structured GeoJSON feed.
// Geometry coordinates are [lon, lat, depth?]; Mag is a pointer because the
// catalog publishes null magnitudes for unreviewed events.
type FeedFeature struct {
	ID       string `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Mag    *float64 `json:"mag"`
		Time   int64    `json:"time"`
		Place  string   `json:"place"`
		Type   string   `json:"type"`
		URL    string   `json:"url"`
		Title  string   `json:"title"`
		Status string   `json:"status"`
	} `json:"properties"`
}

// ScrapeRecord holds the raw text cells of one bulletin table row.
type ScrapeRecord struct {
	DateTime string
	Lat      string
	Lon      string
	Depth    string
	Mag      string
	Location string
}

// NormalizeFeed maps a feed feature into the canonical Event shape.
// Missing magnitude and depth default to 0, missing place to
// "Unknown Location", missing category to "earthquake". Features without
// valid coordinates are rejected.
func NormalizeFeed(f FeedFeature) (Event, error) {
	coords := f.Geometry.Coordinates
	if len(coords) < 2 {
		return Event{}, fmt.Errorf("%w: feature %q has no coordinates", ErrMalformedRecord, f.ID)
	}
	lon, lat := coords[0], coords[1]
	if !ValidCoordinates(lat, lon) {
		return Event{}, fmt.Errorf("%w: feature %q coordinates out of range (%f, %f)", ErrMalformedRecord, f.ID, lat, lon)
	}

	var depth float64
	if len(coords) > 2 {
		depth = coords[2]
	}
	if depth < 0 {
		depth = 0
	}

	var magnitude float64
	if f.Properties.Mag != nil && *f.Properties.Mag > 0 {
		magnitude = *f.Properties.Mag
	}

	place := f.Properties.Place
	if place == "" {
		place = "Unknown Location"
	}
	category := f.Properties.Type
	if category == "" {
		category = "earthquake"
	}

	occurred := time.UnixMilli(f.Properties.Time)

	return Event{
		ID:         SanitizeID(f.ID),
		Source:     SourceFeed,
		Magnitude:  magnitude,
		Latitude:   lat,
		Longitude:  lon,
		Depth:      depth,
		OccurredAt: f.Properties.Time,
		Place:      place,
		Category:   category,
		DetailURL:  f.Properties.URL,
		Raw: map[string]string{
			"dateTimeStr": occurred.In(pst).Format(bulletinTimeLayout),
			"place":       f.Properties.Place,
			"title":       f.Properties.Title,
			"status":      f.Properties.Status,
			"type":        f.Properties.Type,
		},
	}, nil
}

// NormalizeScrape maps one bulletin table row into the canonical Event
// shape. Rows with an unparsable datetime or coordinates are rejected; rows
// older than ScrapeWindow relative to fetchedAt are rejected as
// out-of-window. Depth and magnitude default to 0 when unparsable.
func NormalizeScrape(rec ScrapeRecord, fetchedAt time.Time) (Event, error) {
	occurred, err := ParseBulletinTime(rec.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec.Lat), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec.Lon), 64)
	if errLat != nil || errLon != nil || !ValidCoordinates(lat, lon) {
		return Event{}, fmt.Errorf("%w: unparsable coordinates %q,%q", ErrMalformedRecord, rec.Lat, rec.Lon)
	}

	if occurred.Before(fetchedAt.Add(-ScrapeWindow)) {
		return Event{}, fmt.Errorf("%w: %s", ErrOutOfWindow, occurred.UTC().Format(time.RFC3339))
	}

	place := strings.TrimSpace(rec.Location)
	if place == "" {
		place = "Philippines"
	}

	millis := occurred.UnixMilli()

	return Event{
		ID:         scrapeID(millis, lat, lon),
		Source:     SourceScrape,
		Magnitude:  parseFloatOrZero(rec.Mag),
		Latitude:   lat,
		Longitude:  lon,
		Depth:      parseFloatOrZero(rec.Depth),
		OccurredAt: millis,
		Place:      place,
		Category:   "earthquake",
		Raw: map[string]string{
			"dateTimeStr": strings.TrimSpace(rec.DateTime),
			"location":    strings.TrimSpace(rec.Location),
		},
	}, nil
}

// ParseBulletinTime parses a bulletin datetime like
// "05 October 2025 - 02:28 PM" as Philippine Standard Time (fixed UTC+8).
// The instant is identical to the original system's "naive local parse minus
// eight hours" without depending on the host timezone.
func ParseBulletinTime(s string) (time.Time, error) {
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
	t, err := time.ParseInLocation(bulletinTimeLayout, s, pst)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bulletin time %q: %w", s, err)
	}
	return t, nil
}

// scrapeID derives a stable identifier for sources without native IDs:
// scrape_{epochMillis}_{lat2dp}_{lon2dp}, with decimal points replaced by
// underscores so the ID is a legal store key.
func scrapeID(millis int64, lat, lon float64) string {
	latPart := strings.ReplaceAll(strconv.FormatFloat(lat, 'f', 2, 64), ".", "_")
	lonPart := strings.ReplaceAll(strconv.FormatFloat(lon, 'f', 2, 64), ".", "_")
	return fmt.Sprintf("scrape_%d_%s_%s", millis, latPart, lonPart)
}

// parseFloatOrZero parses a string as float64, returning 0 on failure or
// for negative values (magnitude and depth are non-negative by contract).
func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Stamped returns a copy of the event carrying the server-assigned
// CreatedAt timestamp, taken from the package clock.
func Stamped(e Event) Event {
	e.CreatedAt = clock.Now().UnixMilli()
	return e
}
