package models

import "fmt"

// MaxScheduleDates caps the size of a room's date grid.
const MaxScheduleDates = 31

// TimeRange is the hour span of a schedule, inclusive on both ends.
type TimeRange struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
	Total int `json:"total"`
}

// Schedule is a room's grid definition: a set of calendar dates (epoch days)
// crossed with an hour range. A selectable cell of the grid is a "time slot"
// and is addressed by a single integer, see PackSlot.
type Schedule struct {
	Dates []int64   `json:"dates"`
	Times TimeRange `json:"times"`
}

// PackSlot encodes one (date, hour) grid cell as a single slot id. The
// encoding only depends on the date value itself, never on its position in
// Schedule.Dates, so ids stay stable when the date list is reordered or
// extended.
func PackSlot(date int64, hour int) int64 {
	return date*24 + int64(hour)
}

// SlotDate returns the epoch-day component of a slot id.
func SlotDate(slot int64) int64 {
	return slot / 24
}

// SlotHour returns the hour component of a slot id.
func SlotHour(slot int64) int {
	return int(slot % 24)
}

// Validate checks the grid bounds. It does not mutate the schedule.
func (s *Schedule) Validate() error {
	if len(s.Dates) > MaxScheduleDates {
		return fmt.Errorf("%w: rooms have a max of %d days", ErrInvalidSchedule, MaxScheduleDates)
	}
	if s.Times.Begin < 0 || s.Times.End > 23 {
		return fmt.Errorf("%w: hours must be between 0 and 23", ErrInvalidSchedule)
	}
	if s.Times.Begin > s.Times.End {
		return fmt.Errorf("%w: end time is before start time", ErrInvalidSchedule)
	}
	return nil
}

// normalize recomputes the derived hour count.
func (s *Schedule) normalize() {
	s.Times.Total = s.Times.End - s.Times.Begin + 1
}
