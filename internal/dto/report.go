package dto

import (
	"time"

	"github.com/harmonics-id/music-school-api/internal/models"
)

// ReportRequest asks for an asynchronous export.
type ReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=timetable billing"`
	MentorID *string             `json:"mentor_id,omitempty"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse describes the state of a report job.
type ReportJobResponse struct {
	ID           string              `json:"id"`
	Type         models.ReportType   `json:"type"`
	Status       models.ReportStatus `json:"status"`
	Progress     int                 `json:"progress"`
	DownloadURL  *string             `json:"download_url,omitempty"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}
