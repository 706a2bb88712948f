// Package handler exposes the attendance engine over HTTP. Authentication
// happens upstream; the handler trusts the gateway-resolved actor header and
// focuses on decoding, validation, and error translation.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/service"
	"rollcall/internal/platform/middleware"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// defaultHistoryRange bounds a history query when the caller omits "from".
const defaultHistoryRange = 30 * 24 * time.Hour

// Service is what the handler needs from the attendance service.
type Service interface {
	CheckIn(ctx context.Context, actorID id.UserID, input service.CheckInInput) (*models.AttendanceRecord, error)
	CheckOut(ctx context.Context, actorID id.UserID, eventID id.EventID, userID id.UserID) (*models.AttendanceRecord, error)
	Delete(ctx context.Context, actorID id.UserID, eventID id.EventID, userID id.UserID) error
	IssueCheckInToken(ctx context.Context, actorID id.UserID, eventID id.EventID) (string, time.Time, error)
	RegenerateQRSecret(ctx context.Context, actorID id.UserID, eventID id.EventID) (int, error)
	ListAttendance(ctx context.Context, eventID id.EventID) ([]*models.AttendanceRecord, error)
	History(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.AttendanceRecord, error)
	AuditTrail(ctx context.Context, actorID id.UserID, recordID id.RecordID) (*models.AttendanceRecord, []*models.AuditLogEntry, error)
}

// Handler serves the attendance endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an attendance Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the attendance routes. Every route requires a
// gateway-resolved actor identity.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.RequireActor)

	router.Post("/events/{eventID}/attendance", h.handleCheckIn)
	router.Post("/events/{eventID}/attendance/checkout", h.handleCheckOut)
	router.Delete("/events/{eventID}/attendance/{userID}", h.handleDelete)
	router.Get("/events/{eventID}/attendance", h.handleListAttendance)
	router.Post("/events/{eventID}/qr-token", h.handleIssueToken)
	router.Post("/events/{eventID}/qr-secret/regenerate", h.handleRegenerateSecret)
	router.Get("/users/{userID}/attendance", h.handleHistory)
	router.Get("/attendance/{recordID}/audit", h.handleAuditTrail)

	r.Mount("/", router)
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}

	req, err := httputil.DecodeValid[checkInRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	targetID := actorID
	if req.UserID != "" {
		if targetID, err = id.ParseUserID(req.UserID); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
			return
		}
	}

	fingerprint := req.DeviceFingerprint
	if fingerprint == "" {
		fingerprint = requestcontext.DeviceFingerprint(ctx)
	}

	input := service.CheckInInput{
		EventID: eventID,
		UserID:  targetID,
		Method:  models.Method(req.Method),
		Evidence: models.Evidence{
			QRToken:           req.QRToken,
			DeviceFingerprint: fingerprint,
		},
	}
	if req.Position != nil {
		input.Evidence.Position = &models.Position{
			Latitude:       req.Position.Latitude,
			Longitude:      req.Position.Longitude,
			AccuracyMeters: req.Position.AccuracyMeters,
		}
	}

	rec, err := h.service.CheckIn(ctx, actorID, input)
	if err != nil {
		h.logRejection(ctx, "check-in rejected", err,
			"event_id", eventID.String(),
			"user_id", targetID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}

	// An empty body means the actor checks out themselves.
	req, err := httputil.DecodeValid[checkOutRequest](r)
	if err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, err)
		return
	}
	targetID := actorID
	if req.UserID != "" {
		if targetID, err = id.ParseUserID(req.UserID); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
			return
		}
	}

	rec, err := h.service.CheckOut(ctx, actorID, eventID, targetID)
	if err != nil {
		h.logRejection(ctx, "check-out rejected", err,
			"event_id", eventID.String(),
			"user_id", targetID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
		return
	}

	if err := h.service.Delete(ctx, actorID, eventID, userID); err != nil {
		h.logRejection(ctx, "record deletion rejected", err,
			"event_id", eventID.String(),
			"user_id", userID.String())
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}

	recs, err := h.service.ListAttendance(ctx, eventID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponses(recs))
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}

	token, expiresAt, err := h.service.IssueCheckInToken(ctx, actorID, eventID)
	if err != nil {
		h.logRejection(ctx, "token issuance rejected", err,
			"event_id", eventID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *Handler) handleRegenerateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid event id"))
		return
	}

	version, err := h.service.RegenerateQRSecret(ctx, actorID, eventID)
	if err != nil {
		h.logRejection(ctx, "secret regeneration rejected", err,
			"event_id", eventID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, secretVersionResponse{QRSecretVersion: version})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid user id"))
		return
	}

	now := requestcontext.Now(ctx)
	to := now
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "to must be RFC 3339"))
			return
		}
	}
	from := to.Add(-defaultHistoryRange)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "from must be RFC 3339"))
			return
		}
	}

	recs, err := h.service.History(ctx, userID, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponses(recs))
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actorID := middleware.ActorID(ctx)

	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid record id"))
		return
	}

	rec, entries, err := h.service.AuditTrail(ctx, actorID, recordID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditTrailResponse(rec, entries))
}

func (h *Handler) logRejection(ctx context.Context, msg string, err error, args ...any) {
	if h.logger == nil {
		return
	}
	args = append(args,
		"error", err.Error(),
		"reason", string(dErrors.ReasonOf(err)),
		"request_id", requestcontext.RequestID(ctx),
	)
	h.logger.WarnContext(ctx, msg, args...)
}
