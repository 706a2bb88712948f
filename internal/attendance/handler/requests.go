package handler

import (
	"time"

	"rollcall/internal/attendance/models"
)

type positionPayload struct {
	Latitude       float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude      float64 `json:"longitude" validate:"min=-180,max=180"`
	AccuracyMeters float64 `json:"accuracy_meters" validate:"gte=0"`
}

type checkInRequest struct {
	// UserID is the member being checked in. Empty means the actor
	// themselves; only manual check-ins may name someone else.
	UserID string `json:"user_id" validate:"omitempty,uuid"`

	Method string `json:"method" validate:"required,oneof=qr location manual"`

	QRToken  string           `json:"qr_token"`
	Position *positionPayload `json:"position"`

	// DeviceFingerprint overrides the X-Device-Fingerprint header when set.
	DeviceFingerprint string `json:"device_fingerprint"`
}

type checkOutRequest struct {
	UserID string `json:"user_id" validate:"omitempty,uuid"`
}

type recordResponse struct {
	ID                string     `json:"id"`
	EventID           string     `json:"event_id"`
	UserID            string     `json:"user_id"`
	Method            string     `json:"method"`
	Status            string     `json:"status"`
	DeviceFingerprint *string    `json:"device_fingerprint,omitempty"`
	CheckedInAt       time.Time  `json:"checked_in_at"`
	CheckedOutAt      *time.Time `json:"checked_out_at,omitempty"`
	ActorID           string     `json:"actor_id"`
	IsDeleted         bool       `json:"is_deleted,omitempty"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

func toRecordResponse(rec *models.AttendanceRecord) recordResponse {
	return recordResponse{
		ID:                rec.ID.String(),
		EventID:           rec.EventID.String(),
		UserID:            rec.UserID.String(),
		Method:            string(rec.Method),
		Status:            string(rec.Status),
		DeviceFingerprint: rec.DeviceFingerprint,
		CheckedInAt:       rec.CheckedInAt,
		CheckedOutAt:      rec.CheckedOutAt,
		ActorID:           rec.ActorID.String(),
		IsDeleted:         rec.IsDeleted,
		DeletedAt:         rec.DeletedAt,
	}
}

func toRecordResponses(recs []*models.AttendanceRecord) []recordResponse {
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	return out
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type secretVersionResponse struct {
	QRSecretVersion int `json:"qr_secret_version"`
}

type auditEntryResponse struct {
	ID              int64     `json:"id"`
	Action          string    `json:"action"`
	ActorID         string    `json:"actor_id"`
	Timestamp       time.Time `json:"timestamp"`
	ResultingStatus string    `json:"resulting_status"`
	Detail          string    `json:"detail,omitempty"`
}

type auditTrailResponse struct {
	Record  recordResponse       `json:"record"`
	Entries []auditEntryResponse `json:"entries"`
}

func toAuditTrailResponse(rec *models.AttendanceRecord, entries []*models.AuditLogEntry) auditTrailResponse {
	out := auditTrailResponse{
		Record:  toRecordResponse(rec),
		Entries: make([]auditEntryResponse, 0, len(entries)),
	}
	for _, entry := range entries {
		out.Entries = append(out.Entries, auditEntryResponse{
			ID:              entry.ID,
			Action:          string(entry.Action),
			ActorID:         entry.ActorID.String(),
			Timestamp:       entry.Timestamp,
			ResultingStatus: string(entry.ResultingStatus),
			Detail:          entry.Detail,
		})
	}
	return out
}
