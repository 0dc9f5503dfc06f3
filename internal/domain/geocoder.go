package domain

import "context"

// Address holds the components a reverse-geocoding provider returns for a
// coordinate pair. Any field may be empty.
type Address struct {
	Village      string
	Municipality string
	Town         string
	City         string
	Province     string
	DisplayName  string
}

// BestName picks the most specific usable component, preferring village,
// then municipality, town, city, province, and finally the generic display
// name. Returns "" when nothing usable came back.
func (a Address) BestName() string {
	for _, name := range []string{
		a.Village, a.Municipality, a.Town, a.City, a.Province, a.DisplayName,
	} {
		if name != "" {
			return name
		}
	}
	return ""
}

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (Address, error)
}
