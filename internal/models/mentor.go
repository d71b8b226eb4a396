package models

import "time"

// Mentor represents an instructor who teaches one or more courses.
type Mentor struct {
	ID         string    `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	Instrument string    `db:"instrument" json:"instrument"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// MentorFilter encapsulates search parameters for listing mentors.
type MentorFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
