package availability

import (
	"reflect"
	"testing"

	"github.com/mentorika/Mentorika-server/cmd/models"
)

func booked(id uint, date, timeLabel, status string) models.Booking {
	b := models.Booking{
		MentorID:  1,
		Format:    models.FormatIndividualOnline,
		Date:      date,
		TimeLabel: timeLabel,
		Status:    status,
	}
	b.ID = id
	return b
}

func groupBooked(id uint, date, timeLabel, status string) models.Booking {
	b := booked(id, date, timeLabel, status)
	b.Format = models.FormatGroupOnline
	return b
}

func TestResolveRemovesTakenSlots(t *testing.T) {
	m := models.SlotMap{
		"2026-09-07": {"09:00", "14:00"},
		"2026-09-08": {"10:00"},
	}
	bookings := []models.Booking{
		booked(1, "2026-09-07", "09:00", models.BookingConfirmed),
	}

	got := Resolve(m, bookings, 1, 0)
	want := models.SlotMap{
		"2026-09-07": {"14:00"},
		"2026-09-08": {"10:00"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestResolvePendingOccupiesSlot(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00"}}
	bookings := []models.Booking{
		booked(1, "2026-09-07", "09:00", models.BookingPending),
	}

	got := Resolve(m, bookings, 1, 0)
	if got.Offers("2026-09-07", "09:00") {
		t.Fatalf("pending booking must hold its slot, got %v", got)
	}
}

func TestResolveTerminalStatusesFreeSlot(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00"}}
	for _, status := range []string{
		models.BookingCancelled,
		models.BookingCompleted,
		models.BookingRefunded,
	} {
		bookings := []models.Booking{booked(1, "2026-09-07", "09:00", status)}
		got := Resolve(m, bookings, 1, 0)
		if !got.Offers("2026-09-07", "09:00") {
			t.Errorf("%s booking should free its slot", status)
		}
	}
}

func TestResolveGroupCapacity(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00"}}
	bookings := []models.Booking{
		groupBooked(1, "2026-09-07", "09:00", models.BookingConfirmed),
		groupBooked(2, "2026-09-07", "09:00", models.BookingPending),
	}

	if got := Resolve(m, bookings, 3, 0); !got.Offers("2026-09-07", "09:00") {
		t.Fatalf("two of three seats taken, slot should remain open: %v", got)
	}

	bookings = append(bookings, groupBooked(3, "2026-09-07", "09:00", models.BookingConfirmed))
	if got := Resolve(m, bookings, 3, 0); got.Offers("2026-09-07", "09:00") {
		t.Fatalf("full slot must be hidden: %v", got)
	}
}

func TestResolveMixedFormatsShareNoSlot(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00"}}

	// An individual session holds the whole slot, no group seats on top.
	bookings := []models.Booking{
		booked(1, "2026-09-07", "09:00", models.BookingConfirmed),
	}
	if got := Resolve(m, bookings, 3, 0); got.Offers("2026-09-07", "09:00") {
		t.Fatalf("slot with an individual session must be closed to group seats: %v", got)
	}

	// One group seat closes the slot to individual sessions.
	bookings = []models.Booking{
		groupBooked(2, "2026-09-07", "09:00", models.BookingPending),
	}
	if got := Resolve(m, bookings, 1, 0); got.Offers("2026-09-07", "09:00") {
		t.Fatalf("slot with group seats must be closed to individual sessions: %v", got)
	}
}

func TestResolveExcludesMovingBooking(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00", "14:00"}}
	bookings := []models.Booking{
		booked(5, "2026-09-07", "09:00", models.BookingConfirmed),
	}

	got := Resolve(m, bookings, 1, 5)
	if !got.Offers("2026-09-07", "09:00") {
		t.Fatalf("excluded booking must not count against its own slot: %v", got)
	}
}

func TestResolvePrunesEmptyDates(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00"}}
	bookings := []models.Booking{
		booked(1, "2026-09-07", "09:00", models.BookingConfirmed),
	}

	got := Resolve(m, bookings, 1, 0)
	if _, ok := got["2026-09-07"]; ok {
		t.Fatalf("date with no free times should be pruned: %v", got)
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	m := models.SlotMap{"2026-09-07": {"09:00", "14:00"}}
	bookings := []models.Booking{
		booked(1, "2026-09-07", "09:00", models.BookingConfirmed),
	}

	_ = Resolve(m, bookings, 1, 0)
	if !reflect.DeepEqual(m, models.SlotMap{"2026-09-07": {"09:00", "14:00"}}) {
		t.Fatalf("input map mutated: %v", m)
	}
}

func TestResolveRawBadBlob(t *testing.T) {
	got := ResolveRaw([]byte("corrupted"), nil, 1)
	if len(got) != 0 {
		t.Fatalf("unparseable calendar must resolve empty, got %v", got)
	}
}
