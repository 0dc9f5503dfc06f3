package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	addr  Address
	err   error
	calls int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (Address, error) {
	m.calls++
	return m.addr, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestResolvePlace_NilGeocoder(t *testing.T) {
	event := Event{ID: "evt-1", Place: "Near Mabini"}
	got := ResolvePlace(context.Background(), event, nil, discardLogger())
	assert.Equal(t, "Near Mabini", got)
}

func TestResolvePlace_PrefersMostSpecificComponent(t *testing.T) {
	geo := &mockGeocoder{addr: Address{
		Village:      "Poblacion",
		Municipality: "Mabini",
		Province:     "Batangas",
		DisplayName:  "Poblacion, Mabini, Batangas, Philippines",
	}}
	event := Event{ID: "evt-1", Place: "fallback"}

	got := ResolvePlace(context.Background(), event, geo, discardLogger())
	assert.Equal(t, "Poblacion", got)
	assert.Equal(t, 1, geo.calls)
}

func TestResolvePlace_FallsThroughEmptyComponents(t *testing.T) {
	geo := &mockGeocoder{addr: Address{Province: "Batangas"}}
	got := ResolvePlace(context.Background(), Event{Place: "fallback"}, geo, discardLogger())
	assert.Equal(t, "Batangas", got)
}

func TestResolvePlace_LookupErrorFallsBack(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("service unavailable")}
	event := Event{ID: "evt-1", Place: "Near Mabini"}

	got := ResolvePlace(context.Background(), event, geo, discardLogger())
	assert.Equal(t, "Near Mabini", got)
}

func TestResolvePlace_EmptyResultFallsBack(t *testing.T) {
	geo := &mockGeocoder{}
	got := ResolvePlace(context.Background(), Event{Place: "Near Mabini"}, geo, discardLogger())
	assert.Equal(t, "Near Mabini", got)
}

func TestAddressBestName_Order(t *testing.T) {
	assert.Equal(t, "", Address{}.BestName())
	assert.Equal(t, "Manila", Address{City: "Manila", Province: "Metro Manila"}.BestName())
	assert.Equal(t, "display", Address{DisplayName: "display"}.BestName())
}
