// Package domain models earthquake events from the two upstream sources.
//
// # Data Sources
//
// The structured feed is the USGS earthquake catalog: either the rolling
// all-hour GeoJSON summary (global, filtered client-side to the monitored
// region) or the FDSN event query parameterized with the region's bounding
// box and a magnitude floor. Fields consumed per feature: geometry
// coordinates [lon, lat, depth], properties {mag, time, place, type, url}.
//
// The scrape source is the PHIVOLCS earthquake bulletin page, an HTML table
// whose rows are [datetime, latitude, longitude, depth, magnitude, location].
// Row datetimes look like
//
//	"05 October 2025 - 02:28 PM"
//
// and are Philippine Standard Time, a fixed UTC+8 offset with no DST. The
// page only ever lists a rolling recent window, so rows older than 24 hours
// are expected and filtered out without being treated as errors.
//
// # Identifiers
//
// Feed events carry a stable catalog ID. Scraped rows have none, so an ID is
// derived from (origin time, rounded coordinates):
//
//	scrape_{epochMillis}_{lat 2dp}_{lon 2dp}   with "." replaced by "_"
//
// IDs double as store key path segments, so the characters . # $ [ ] are
// substituted before use. The same physical event always derives the same
// ID, which is what makes re-polling idempotent.
package domain
