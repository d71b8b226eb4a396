package dto

// BookingResult reports the slot, room, and registration bill created by a
// successful booking.
type BookingResult struct {
	SessionID    string `json:"session_id"`
	EnrollmentID string `json:"enrollment_id"`
	Day          string `json:"day"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Room         string `json:"room"`
	BillID       string `json:"bill_id"`
	Amount       int64  `json:"amount"`
}
