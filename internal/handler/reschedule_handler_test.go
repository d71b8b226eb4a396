package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonics-id/music-school-api/internal/middleware"
	"github.com/harmonics-id/music-school-api/internal/models"
)

func TestRescheduleProposeRejectsMalformedBody(t *testing.T) {
	handler := NewRescheduleHandler(nil, nil)

	c, rec := newTestContext(t, http.MethodPost, "/reschedules", "{bad")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	handler.Propose(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleProposeRequiresClaims(t *testing.T) {
	handler := NewRescheduleHandler(nil, nil)

	c, rec := newTestContext(t, http.MethodPost, "/reschedules", `{"session_id":"sess-1","day":"TUESDAY","start_time":"14:00"}`)

	handler.Propose(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRescheduleProposeAdminMustNameStudent(t *testing.T) {
	handler := NewRescheduleHandler(nil, nil)

	c, rec := newTestContext(t, http.MethodPost, "/reschedules", `{"session_id":"sess-1","day":"TUESDAY","start_time":"14:00"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin})

	handler.Propose(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Contains(t, envelope.Error.Message, "student_id")
}

func TestRescheduleDecideRejectsMalformedBody(t *testing.T) {
	handler := NewRescheduleHandler(nil, nil)

	c, rec := newTestContext(t, http.MethodPost, "/reschedules/enr-1/decision", "{bad")

	handler.Decide(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
