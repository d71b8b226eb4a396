package models

import "time"

// SessionEnrollmentStatus represents the reschedule state machine of a
// session enrollment.
type SessionEnrollmentStatus string

// Possible session enrollment statuses. PENDING_CHANGE carries a non-null
// requested day/time pair; ENROLLED never does.
const (
	SessionEnrollmentStatusEnrolled      SessionEnrollmentStatus = "ENROLLED"
	SessionEnrollmentStatusPendingChange SessionEnrollmentStatus = "PENDING_CHANGE"
)

// SessionEnrollment binds exactly one student to one scheduled session.
type SessionEnrollment struct {
	ID            string                  `db:"id" json:"id"`
	SessionID     string                  `db:"session_id" json:"session_id"`
	StudentID     string                  `db:"student_id" json:"student_id"`
	Status        SessionEnrollmentStatus `db:"status" json:"status"`
	RequestedDay  *string                 `db:"requested_day" json:"requested_day,omitempty"`
	RequestedTime *string                 `db:"requested_time" json:"requested_time,omitempty"`
	CreatedAt     time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time               `db:"updated_at" json:"updated_at"`
}

// PendingReschedule is one entry of the admin approval queue, joining the
// enrollment with its student, course, mentor, and current slot.
type PendingReschedule struct {
	EnrollmentID  string `db:"enrollment_id" json:"enrollment_id"`
	SessionID     string `db:"session_id" json:"session_id"`
	StudentID     string `db:"student_id" json:"student_id"`
	StudentName   string `db:"student_name" json:"student_name"`
	CourseID      string `db:"course_id" json:"course_id"`
	CourseTitle   string `db:"course_title" json:"course_title"`
	MentorID      string `db:"mentor_id" json:"mentor_id"`
	MentorName    string `db:"mentor_name" json:"mentor_name"`
	CurrentDay    string `db:"current_day" json:"current_day"`
	CurrentTime   string `db:"current_time" json:"current_time"`
	CurrentRoom   string `db:"current_room" json:"current_room"`
	RequestedDay  string `db:"requested_day" json:"requested_day"`
	RequestedTime string `db:"requested_time" json:"requested_time"`
}
