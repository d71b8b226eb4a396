package models

import "time"

// BillStatus represents payment state of a bill.
type BillStatus string

// Possible bill statuses.
const (
	BillStatusUnpaid  BillStatus = "UNPAID"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusOverdue BillStatus = "OVERDUE"
)

// Bill is an invoice issued against an enrollment. The first bill is the
// registration fee created together with the booking.
type Bill struct {
	ID           string     `db:"id" json:"id"`
	EnrollmentID string     `db:"enrollment_id" json:"enrollment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Description  string     `db:"description" json:"description"`
	Amount       int64      `db:"amount" json:"amount"`
	DueDate      time.Time  `db:"due_date" json:"due_date"`
	Status       BillStatus `db:"status" json:"status"`
	PaidAt       *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// BillFilter provides filters for listing bills.
type BillFilter struct {
	StudentID string
	Status    BillStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
