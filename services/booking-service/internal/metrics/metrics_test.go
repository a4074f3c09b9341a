package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)
	m.ObserveBooking("success", 20*time.Millisecond)
	m.ObserveBooking("success", 10*time.Millisecond)
	m.ObserveBooking("conflict", time.Millisecond)
	m.ObserveCatalogLookup("hit")

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")); got != 1 {
		t.Fatalf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.catalogLookupTotal.WithLabelValues("hit")); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("success", time.Second)
	m.ObserveDeletion("success")
	m.ObserveAvailability("success")
	m.ObserveCatalogLookup("miss")
}
