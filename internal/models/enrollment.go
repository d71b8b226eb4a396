package models

import "time"

// EnrollmentStatus represents the lifecycle of a course enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingPayment EnrollmentStatus = "PENDING_PAYMENT"
	EnrollmentStatusActive         EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted      EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled      EnrollmentStatus = "CANCELLED"
)

// Enrollment captures the durable relationship between a student and a
// course. It is distinct from SessionEnrollment, which binds the student to
// one specific recurring session.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
