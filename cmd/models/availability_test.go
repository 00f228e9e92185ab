package models

import (
	"reflect"
	"testing"
	"time"
)

func TestToggleAddsAndRemoves(t *testing.T) {
	m := SlotMap{"2026-09-07": {"09:00"}}

	added := m.Toggle("2026-09-07", "14:00")
	if !added.Offers("2026-09-07", "14:00") {
		t.Fatalf("expected 14:00 offered after toggle on, got %v", added)
	}
	if !added.Offers("2026-09-07", "09:00") {
		t.Fatalf("toggle dropped an unrelated time: %v", added)
	}

	removed := added.Toggle("2026-09-07", "14:00")
	if removed.Offers("2026-09-07", "14:00") {
		t.Fatalf("expected 14:00 gone after toggle off, got %v", removed)
	}
	if !reflect.DeepEqual(removed, m) {
		t.Fatalf("double toggle did not round-trip: got %v want %v", removed, m)
	}
}

func TestToggleDoesNotMutateReceiver(t *testing.T) {
	m := SlotMap{"2026-09-07": {"09:00"}}
	_ = m.Toggle("2026-09-07", "09:00")
	_ = m.Toggle("2026-09-08", "10:00")

	if !reflect.DeepEqual(m, SlotMap{"2026-09-07": {"09:00"}}) {
		t.Fatalf("receiver mutated: %v", m)
	}
}

func TestTogglePrunesEmptyDate(t *testing.T) {
	m := SlotMap{"2026-09-07": {"09:00"}}
	out := m.Toggle("2026-09-07", "09:00")

	if _, ok := out["2026-09-07"]; ok {
		t.Fatalf("expected date key pruned, got %v", out)
	}
}

func TestToggleDropsDuplicates(t *testing.T) {
	m := SlotMap{"2026-09-07": {"09:00", "09:00", "11:00"}}
	out := m.Toggle("2026-09-07", "09:00")

	if out.Offers("2026-09-07", "09:00") {
		t.Fatalf("expected every duplicate removed, got %v", out)
	}
	if !out.Offers("2026-09-07", "11:00") {
		t.Fatalf("unrelated time lost: %v", out)
	}
}

func TestParseSlotMapFailClosed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"garbage", "not json"},
		{"wrong shape", `{"2026-09-07": "09:00"}`},
		{"array", `["09:00"]`},
		{"null", "null"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := ParseSlotMap([]byte(tc.raw))
			if len(m) != 0 {
				t.Fatalf("expected empty map for %q, got %v", tc.raw, m)
			}
		})
	}
}

func TestParseSlotMapPrunesEmptyLists(t *testing.T) {
	m := ParseSlotMap([]byte(`{"2026-09-07": [], "2026-09-08": ["10:00"]}`))
	if _, ok := m["2026-09-07"]; ok {
		t.Fatalf("empty date list kept: %v", m)
	}
	if !m.Offers("2026-09-08", "10:00") {
		t.Fatalf("valid entry lost: %v", m)
	}
}

func TestSlotMapScanRoundTrip(t *testing.T) {
	in := SlotMap{"2026-09-07": {"09:00", "14:00"}}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out SlotMap
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("round trip mismatch: got %v want %v", out, in)
	}
}

func TestSlotMapValueNil(t *testing.T) {
	var m SlotMap
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != "{}" {
		t.Fatalf("nil map should store as empty object, got %v", v)
	}
}

func TestFreshAvailability(t *testing.T) {
	now := time.Date(2026, 9, 7, 12, 0, 0, 0, time.UTC)

	if FreshAvailability(nil, now) {
		t.Fatal("never-confirmed calendar must be stale")
	}

	recent := now.Add(-6 * 24 * time.Hour)
	if !FreshAvailability(&recent, now) {
		t.Fatal("six day old confirmation should be fresh")
	}

	old := now.Add(-8 * 24 * time.Hour)
	if FreshAvailability(&old, now) {
		t.Fatal("eight day old confirmation should be stale")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{BookingPending, BookingConfirmed},
		{BookingPending, BookingCancelled},
		{BookingConfirmed, BookingCompleted},
		{BookingConfirmed, BookingCancelled},
		{BookingConfirmed, BookingRefunded},
		{BookingConfirmed, BookingConfirmed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to string }{
		{BookingCompleted, BookingCancelled},
		{BookingCancelled, BookingConfirmed},
		{BookingRefunded, BookingConfirmed},
		{BookingPending, BookingCompleted},
		{BookingPending, BookingRefunded},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}
