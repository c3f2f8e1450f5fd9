package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackSlotBijection(t *testing.T) {
	dates := []int64{19800, 19801, 19927}

	seen := make(map[int64]bool)
	for _, date := range dates {
		for hour := 0; hour <= 23; hour++ {
			slot := PackSlot(date, hour)

			assert.False(t, seen[slot], "slot id %d produced twice", slot)
			seen[slot] = true

			assert.Equal(t, date, SlotDate(slot))
			assert.Equal(t, hour, SlotHour(slot))
		}
	}
}

func TestPackSlotIndependentOfDateOrder(t *testing.T) {
	// The id depends only on the date value, so reordering a room's date list
	// must never remap existing slot ids.
	assert.Equal(t, PackSlot(19800, 10), PackSlot(19800, 10))
	assert.Equal(t, int64(19800*24+10), PackSlot(19800, 10))
	assert.NotEqual(t, PackSlot(19800, 10), PackSlot(19801, 10))
}

func TestScheduleValidate(t *testing.T) {
	valid := Schedule{
		Dates: []int64{19800, 19801},
		Times: TimeRange{Begin: 9, End: 17},
	}
	require.NoError(t, valid.Validate())

	empty := Schedule{}
	assert.NoError(t, empty.Validate())
}

func TestScheduleValidateTooManyDates(t *testing.T) {
	s := Schedule{Times: TimeRange{Begin: 9, End: 17}}
	for i := 0; i < MaxScheduleDates+1; i++ {
		s.Dates = append(s.Dates, int64(19800+i))
	}

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestScheduleValidateEndBeforeBegin(t *testing.T) {
	s := Schedule{
		Dates: []int64{19800},
		Times: TimeRange{Begin: 17, End: 9},
	}

	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestScheduleValidateHourBounds(t *testing.T) {
	tooLate := Schedule{Times: TimeRange{Begin: 0, End: 24}}
	assert.ErrorIs(t, tooLate.Validate(), ErrInvalidSchedule)

	negative := Schedule{Times: TimeRange{Begin: -1, End: 10}}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidSchedule)
}

func TestScheduleNormalizeTotal(t *testing.T) {
	s := Schedule{Times: TimeRange{Begin: 9, End: 17}}
	s.normalize()
	assert.Equal(t, 9, s.Times.Total)
}
