package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotCatalogShape(t *testing.T) {
	catalog := NewSlotCatalog([]string{"Studio A", "Studio B"})

	days := catalog.Days()
	require.Len(t, days, 6)
	assert.Equal(t, "MONDAY", days[0])
	assert.Equal(t, "SATURDAY", days[5])
	assert.NotContains(t, days, "SUNDAY")

	slots := catalog.TimeSlots()
	require.Len(t, slots, 7)
	assert.Equal(t, "11:00", slots[0].StartTime)
	assert.Equal(t, "11:45", slots[0].EndTime)
	assert.Equal(t, "17:00", slots[6].StartTime)
	assert.Equal(t, "17:45", slots[6].EndTime)

	assert.Equal(t, 2, catalog.RoomCount())
}

func TestSlotCatalogDefaultRooms(t *testing.T) {
	catalog := NewSlotCatalog(nil)
	assert.Equal(t, 3, catalog.RoomCount())
}

func TestSlotCatalogEndTimeFor(t *testing.T) {
	catalog := NewSlotCatalog(nil)

	end, err := catalog.EndTimeFor("14:00")
	require.NoError(t, err)
	assert.Equal(t, "14:45", end)

	_, err = catalog.EndTimeFor("14:30")
	assert.Error(t, err)
}

func TestSlotCatalogValidSlot(t *testing.T) {
	catalog := NewSlotCatalog(nil)

	assert.True(t, catalog.ValidSlot("MONDAY", "11:00"))
	assert.True(t, catalog.ValidSlot("SATURDAY", "17:00"))
	assert.False(t, catalog.ValidSlot("SUNDAY", "11:00"))
	assert.False(t, catalog.ValidSlot("MONDAY", "10:00"))
	assert.False(t, catalog.ValidSlot("monday", "11:00"))
}

func TestSlotCatalogCopiesAreIsolated(t *testing.T) {
	catalog := NewSlotCatalog([]string{"Studio 1"})
	rooms := catalog.Rooms()
	rooms[0] = "mutated"
	assert.Equal(t, []string{"Studio 1"}, catalog.Rooms())
}
