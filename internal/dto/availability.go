package dto

// AvailabilityCourse summarises the course a grid was computed for.
type AvailabilityCourse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Fee        int64  `json:"fee"`
	MentorName string `json:"mentor_name"`
}

// AvailabilitySlot is one cell of the 6x7 booking grid.
type AvailabilitySlot struct {
	Day         string `json:"day"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
	MentorName  string `json:"mentor_name"`
}

// AvailabilityResponse is the full availability grid for a course.
type AvailabilityResponse struct {
	Course AvailabilityCourse `json:"course"`
	Slots  []AvailabilitySlot `json:"slots"`
}
