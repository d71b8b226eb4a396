package models

import "time"

// SessionStatus represents the lifecycle of a scheduled session.
type SessionStatus string

// Possible session statuses.
const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCancelled SessionStatus = "CANCELLED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// Session represents a weekly recurring lesson occupying one mentor and one
// room at a fixed (day, startTime) slot. Capacity is one student.
type Session struct {
	ID        string        `db:"id" json:"id"`
	CourseID  string        `db:"course_id" json:"course_id"`
	MentorID  string        `db:"mentor_id" json:"mentor_id"`
	DayOfWeek string        `db:"day_of_week" json:"day_of_week"`
	StartTime string        `db:"start_time" json:"start_time"`
	EndTime   string        `db:"end_time" json:"end_time"`
	Room      string        `db:"room" json:"room"`
	Status    SessionStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// SessionDetail enriches Session with course and mentor display info.
type SessionDetail struct {
	Session
	CourseTitle string `db:"course_title" json:"course_title"`
	MentorName  string `db:"mentor_name" json:"mentor_name"`
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	CourseID  string
	MentorID  string
	DayOfWeek string
	StartTime string
	Room      string
	Status    SessionStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SlotOccupancy is one row of the occupancy ledger: an active session with an
// enrolled student holding a mentor and a room at a slot.
type SlotOccupancy struct {
	SessionID string `db:"session_id" json:"session_id"`
	MentorID  string `db:"mentor_id" json:"mentor_id"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartTime string `db:"start_time" json:"start_time"`
	Room      string `db:"room" json:"room"`
}
