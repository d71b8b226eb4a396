package models

import "time"

// DashboardSummary aggregates headline numbers for the admin portal.
type DashboardSummary struct {
	ActiveSessions     int                  `json:"active_sessions"`
	PendingReschedules int                  `json:"pending_reschedules"`
	UnpaidBills        int                  `json:"unpaid_bills"`
	ActiveStudents     int                  `json:"active_students"`
	RoomUtilisation    []DayRoomUtilisation `json:"room_utilisation"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// DayRoomUtilisation reports how many of the day's room-slots are occupied.
type DayRoomUtilisation struct {
	Day      string  `json:"day"`
	Occupied int     `json:"occupied"`
	Capacity int     `json:"capacity"`
	Ratio    float64 `json:"ratio"`
}
