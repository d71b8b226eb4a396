package service

import (
	appErrors "github.com/harmonics-id/music-school-api/pkg/errors"
)

// TimeSlot is one bookable time range of the weekly grid.
type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// SlotCatalog defines the immutable universe of bookable (day, time) pairs
// and the shared room pool. Lessons run Monday through Saturday in seven
// 45-minute slots between 11:00 and 17:45, with a 15-minute gap between
// consecutive slots. Sunday is closed.
type SlotCatalog struct {
	days    []string
	slots   []TimeSlot
	rooms   []string
	endFor  map[string]string
	daysSet map[string]struct{}
}

var catalogDays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"}

var catalogSlots = []TimeSlot{
	{StartTime: "11:00", EndTime: "11:45"},
	{StartTime: "12:00", EndTime: "12:45"},
	{StartTime: "13:00", EndTime: "13:45"},
	{StartTime: "14:00", EndTime: "14:45"},
	{StartTime: "15:00", EndTime: "15:45"},
	{StartTime: "16:00", EndTime: "16:45"},
	{StartTime: "17:00", EndTime: "17:45"},
}

// NewSlotCatalog builds the catalog for the given room pool. An empty pool
// falls back to three studios.
func NewSlotCatalog(rooms []string) *SlotCatalog {
	if len(rooms) == 0 {
		rooms = []string{"Studio 1", "Studio 2", "Studio 3"}
	}

	endFor := make(map[string]string, len(catalogSlots))
	for _, slot := range catalogSlots {
		endFor[slot.StartTime] = slot.EndTime
	}
	daysSet := make(map[string]struct{}, len(catalogDays))
	for _, day := range catalogDays {
		daysSet[day] = struct{}{}
	}

	return &SlotCatalog{
		days:    catalogDays,
		slots:   catalogSlots,
		rooms:   rooms,
		endFor:  endFor,
		daysSet: daysSet,
	}
}

// Days returns the six bookable day names in week order.
func (c *SlotCatalog) Days() []string {
	out := make([]string, len(c.days))
	copy(out, c.days)
	return out
}

// TimeSlots returns the seven bookable time ranges in day order.
func (c *SlotCatalog) TimeSlots() []TimeSlot {
	out := make([]TimeSlot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Rooms returns the ordered room pool. Rooms are fungible; assignment is
// first-available in this order.
func (c *SlotCatalog) Rooms() []string {
	out := make([]string, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// RoomCount returns the size of the room pool.
func (c *SlotCatalog) RoomCount() int {
	return len(c.rooms)
}

// EndTimeFor resolves the canonical end time of a slot start.
func (c *SlotCatalog) EndTimeFor(startTime string) (string, error) {
	end, ok := c.endFor[startTime]
	if !ok {
		return "", appErrors.Clone(appErrors.ErrInvalidScheduleInput, "unknown slot start time")
	}
	return end, nil
}

// ValidDay reports whether day is one of the six bookable days.
func (c *SlotCatalog) ValidDay(day string) bool {
	_, ok := c.daysSet[day]
	return ok
}

// ValidSlot reports whether (day, startTime) is a coordinate of the grid.
func (c *SlotCatalog) ValidSlot(day, startTime string) bool {
	if !c.ValidDay(day) {
		return false
	}
	_, ok := c.endFor[startTime]
	return ok
}
