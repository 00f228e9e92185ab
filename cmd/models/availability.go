package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FreshnessWindow is how long a mentor's availability counts as reconfirmed
// before it is hidden from bookers again.
const FreshnessWindow = 7 * 24 * time.Hour

// SlotMap is a per-owner availability calendar: date ("2006-01-02") to the
// time labels offered on that date. It is stored as a single JSON column.
// A date key never maps to an empty list; removals prune the key.
type SlotMap map[string][]string

// ParseSlotMap deserializes a stored availability blob. Bad historical data
// must never break the booking flow, so any parse failure resolves to an
// empty map instead of an error.
func ParseSlotMap(raw []byte) SlotMap {
	if len(raw) == 0 {
		return SlotMap{}
	}
	var m SlotMap
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return SlotMap{}
	}
	for date, times := range m {
		if len(times) == 0 {
			delete(m, date)
		}
	}
	return m
}

// Clone returns an independent copy of the map.
func (m SlotMap) Clone() SlotMap {
	out := make(SlotMap, len(m))
	for date, times := range m {
		cp := make([]string, len(times))
		copy(cp, times)
		out[date] = cp
	}
	return out
}

// Toggle returns a copy of the map with timeLabel added under date if absent,
// or removed if present. Removing the last time on a date prunes the date
// key. Toggling off drops every duplicate of the label, so a double toggle
// always round-trips.
func (m SlotMap) Toggle(date, timeLabel string) SlotMap {
	out := m.Clone()
	times := out[date]
	var kept []string
	found := false
	for _, t := range times {
		if t == timeLabel {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		out[date] = append(kept, timeLabel)
		return out
	}
	if len(kept) == 0 {
		delete(out, date)
	} else {
		out[date] = kept
	}
	return out
}

// IsDateOffered reports whether date has at least one offered time.
func (m SlotMap) IsDateOffered(date string) bool {
	return len(m[date]) > 0
}

// Offers reports whether the exact (date, time) pair is in the map.
func (m SlotMap) Offers(date, timeLabel string) bool {
	for _, t := range m[date] {
		if t == timeLabel {
			return true
		}
	}
	return false
}

func (m SlotMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *SlotMap) Scan(value interface{}) error {
	if value == nil {
		*m = SlotMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*m = ParseSlotMap(v)
	case string:
		*m = ParseSlotMap([]byte(v))
	default:
		return fmt.Errorf("unsupported slot map column type %T", value)
	}
	return nil
}

// FreshAvailability reports whether an availability calendar reconfirmed at
// last is still current at now. A mentor who has never reconfirmed is stale.
func FreshAvailability(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	return last.After(now.Add(-FreshnessWindow))
}
