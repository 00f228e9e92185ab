package availability

import (
	"github.com/mentorika/Mentorika-server/cmd/models"
)

// Resolve returns a copy of the calendar with every (date, time) pair removed
// that existing bookings have filled to capacity. A pending booking occupies
// its slot the same as a confirmed one; cancelled, refunded and completed
// bookings free it. capacity below 1 is treated as 1.
//
// Occupancy is format-aware: an active individual-format booking fills its
// slot outright, closing it to every format, so group seats are never sold
// over a 1:1 session. Group bookings accumulate against capacity, and since
// individual requests resolve with capacity 1 a single group seat already
// closes the slot in that direction.
//
// excludeID skips one booking from the count, used when rescheduling the
// booking that is being moved. Zero excludes nothing.
func Resolve(m models.SlotMap, bookings []models.Booking, capacity int, excludeID uint) models.SlotMap {
	if capacity < 1 {
		capacity = 1
	}

	type load struct {
		count     int
		exclusive bool
	}
	taken := make(map[[2]string]load)
	for _, b := range bookings {
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if !models.ActiveStatus(b.Status) {
			continue
		}
		key := [2]string{b.Date, b.TimeLabel}
		l := taken[key]
		l.count++
		if !models.IsGroupFormat(b.Format) {
			l.exclusive = true
		}
		taken[key] = l
	}

	out := models.SlotMap{}
	for date, times := range m {
		var free []string
		for _, t := range times {
			l := taken[[2]string{date, t}]
			if !l.exclusive && l.count < capacity {
				free = append(free, t)
			}
		}
		if len(free) > 0 {
			out[date] = free
		}
	}
	return out
}

// ResolveRaw resolves a stored availability blob. A blob that fails to parse
// resolves to an empty map: absent availability is the safe default, a slot
// that cannot be honored must never be shown.
func ResolveRaw(raw []byte, bookings []models.Booking, capacity int) models.SlotMap {
	return Resolve(models.ParseSlotMap(raw), bookings, capacity, 0)
}
