package models

import "time"

// Course represents a private-lesson course taught by exactly one mentor.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	MentorID    *string   `db:"mentor_id" json:"mentor_id,omitempty"`
	Fee         int64     `db:"fee" json:"fee"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with the mentor's display name.
type CourseDetail struct {
	Course
	MentorName *string `db:"mentor_name" json:"mentor_name,omitempty"`
}

// CourseFilter describes query params for listing courses.
type CourseFilter struct {
	Search    string
	MentorID  string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
