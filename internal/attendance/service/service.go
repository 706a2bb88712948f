// Package service orchestrates the check-in engine: authorization gate,
// method validators, conflict guard, and the atomic record-plus-audit write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rollcall/internal/attendance/authz"
	"rollcall/internal/attendance/device"
	"rollcall/internal/attendance/geofence"
	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/ports"
	"rollcall/internal/attendance/qrtoken"
	"rollcall/internal/attendance/store/audit"
	"rollcall/internal/attendance/store/record"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// CheckInInput is one check-in attempt. ActorID comes from the request
// context, not from here; the target user may differ from the actor only on
// manual check-ins.
type CheckInInput struct {
	EventID  id.EventID
	UserID   id.UserID
	Method   models.Method
	Evidence models.Evidence
}

// Service runs every attendance operation end to end. Reads go straight to
// the stores; mutations pass through the authorization gate, the method
// validator, the device guard, and finally one transactional write that
// lands the record and its audit entry together.
type Service struct {
	events  ports.EventRepository
	records record.Store
	entries audit.Store
	tx      TxRunner
	gate    *authz.Gate
	tokens  *qrtoken.Issuer
	fence   *geofence.Validator
	roles   ports.TeamRoleService
	guard   device.Guard
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGuard installs the distributed device claim guard. Without it the
// uniqueness indexes still reject conflicting writes; the guard only fails
// them faster.
func WithGuard(g device.Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

// New constructs a Service.
func New(
	events ports.EventRepository,
	records record.Store,
	entries audit.Store,
	tx TxRunner,
	gate *authz.Gate,
	tokens *qrtoken.Issuer,
	fence *geofence.Validator,
	roles ports.TeamRoleService,
	opts ...Option,
) *Service {
	s := &Service{
		events:  events,
		records: records,
		entries: entries,
		tx:      tx,
		gate:    gate,
		tokens:  tokens,
		fence:   fence,
		roles:   roles,
		guard:   device.NoopGuard{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn validates and persists one check-in attempt. Nothing is written
// until every check has passed; the storage layer settles races between
// concurrent attempts.
func (s *Service) CheckIn(ctx context.Context, actorID id.UserID, input CheckInInput) (*models.AttendanceRecord, error) {
	rec, err := s.checkIn(ctx, actorID, input)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}
	s.countAcceptance(input.Method)
	return rec, nil
}

func (s *Service) checkIn(ctx context.Context, actorID id.UserID, input CheckInInput) (*models.AttendanceRecord, error) {
	if !input.Method.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown check-in method: "+string(input.Method))
	}

	event, err := s.loadEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	actor, err := s.resolveActor(ctx, actorID, event.TeamID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := s.gate.Authorize(ctx, actor, input.UserID, event, input.Method, now); err != nil {
		return nil, err
	}

	fingerprint, err := s.validateEvidence(event, input.Method, input.Evidence, now)
	if err != nil {
		return nil, err
	}

	claimed := false
	if fingerprint != nil {
		switch err := s.guard.Claim(ctx, input.EventID, *fingerprint, input.UserID); {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			s.countDeviceConflict()
			return nil, dErrors.WrapWithReason(err, dErrors.CodeConflict, models.ReasonDeviceAlreadyUsed,
				"device already checked in a different user for this event")
		case err != nil:
			// The guard is a fast path; the storage index still rejects
			// conflicting writes when Redis is unavailable.
			s.log(ctx, slog.LevelWarn, "device guard unavailable, falling back to storage constraint",
				"error", err)
		default:
			claimed = true
		}
	}

	rec := &models.AttendanceRecord{
		ID:                id.NewRecordID(),
		EventID:           input.EventID,
		UserID:            input.UserID,
		Method:            input.Method,
		Status:            models.StatusCheckedIn,
		DeviceFingerprint: fingerprint,
		CheckedInAt:       now,
		ActorID:           actorID,
	}
	err = s.tx.RunInTx(ctx, func(records record.Store, entries audit.Store) error {
		if err := records.Create(ctx, rec); err != nil {
			return err
		}
		return entries.Append(ctx, &models.AuditLogEntry{
			RecordID:        rec.ID,
			Action:          models.AuditCheckIn,
			ActorID:         actorID,
			Timestamp:       now,
			ResultingStatus: models.StatusCheckedIn,
			Detail:          "method=" + string(input.Method),
		})
	})
	if err != nil {
		if claimed {
			if releaseErr := s.guard.Release(ctx, input.EventID, *fingerprint); releaseErr != nil {
				s.log(ctx, slog.LevelWarn, "release device claim after failed check-in",
					"error", releaseErr)
			}
		}
		return nil, s.translateCreateError(err)
	}

	s.logAudit(ctx, "attendance.checked_in",
		"record_id", rec.ID.String(),
		"event_id", input.EventID.String(),
		"user_id", input.UserID.String(),
		"actor_id", actorID.String(),
		"method", string(input.Method))
	return rec, nil
}

// validateEvidence runs the method-specific proof check and returns the
// fingerprint to persist. Manual check-ins never carry one: the privileged
// actor's device must stay free for their own check-in.
func (s *Service) validateEvidence(event *models.Event, method models.Method, ev models.Evidence, now time.Time) (*string, error) {
	switch method {
	case models.MethodQR:
		if ev.QRToken == "" {
			return nil, dErrors.NewWithReason(dErrors.CodeValidation, models.ReasonQRInvalidSignature,
				"qr token is required for qr check-in")
		}
		if err := s.tokens.Verify(ev.QRToken, event, now); err != nil {
			return nil, err
		}
	case models.MethodLocation:
		if err := s.fence.Validate(ev.Position, event.Location); err != nil {
			return nil, err
		}
	case models.MethodManual:
		return nil, nil
	}

	if ev.DeviceFingerprint == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "device fingerprint is required for "+string(method)+" check-in")
	}
	fingerprint := ev.DeviceFingerprint
	return &fingerprint, nil
}

func (s *Service) translateCreateError(err error) error {
	switch {
	case errors.Is(err, record.ErrActiveRecordExists):
		return dErrors.WrapWithReason(err, dErrors.CodeConflict, models.ReasonDuplicateCheckin,
			"an active attendance record already exists for this event")
	case errors.Is(err, record.ErrDeviceInUse):
		s.countDeviceConflict()
		return dErrors.WrapWithReason(err, dErrors.CodeConflict, models.ReasonDeviceAlreadyUsed,
			"device already checked in a different user for this event")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist check-in")
	}
}

// CheckOut moves the actor's (or, for privileged actors, anyone's) record to
// its terminal state. Repeating it is rejected without touching the stored
// check-out time.
func (s *Service) CheckOut(ctx context.Context, actorID id.UserID, eventID id.EventID, userID id.UserID) (*models.AttendanceRecord, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOnBehalf(ctx, actorID, userID, event.TeamID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var rec *models.AttendanceRecord
	err = s.tx.RunInTx(ctx, func(records record.Store, entries audit.Store) error {
		var err error
		rec, err = records.MarkCheckedOut(ctx, eventID, userID, now)
		if err != nil {
			return err
		}
		return entries.Append(ctx, &models.AuditLogEntry{
			RecordID:        rec.ID,
			Action:          models.AuditCheckOut,
			ActorID:         actorID,
			Timestamp:       now,
			ResultingStatus: models.StatusCheckedOut,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.WrapWithReason(err, dErrors.CodeConflict, models.ReasonAlreadyCheckedOut,
				"attendance record is already checked out")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.WrapWithReason(err, dErrors.CodeNotFound, models.ReasonRecordNotFound,
				"no attendance record to check out")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist check-out")
		}
	}

	s.countCheckout()
	s.logAudit(ctx, "attendance.checked_out",
		"record_id", rec.ID.String(),
		"event_id", eventID.String(),
		"user_id", userID.String(),
		"actor_id", actorID.String())
	return rec, nil
}

// Delete soft-deletes the active record for (event, user). The row stays in
// storage for the audit trail but disappears from every standard read, and
// the slot reopens for a fresh check-in.
func (s *Service) Delete(ctx context.Context, actorID id.UserID, eventID id.EventID, userID id.UserID) error {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	actor, err := s.resolveActor(ctx, actorID, event.TeamID)
	if err != nil {
		return err
	}
	if !actor.Can(models.CapabilityManualOverride) {
		return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"removing attendance records requires the manual override capability")
	}

	now := requestcontext.Now(ctx)
	var rec *models.AttendanceRecord
	err = s.tx.RunInTx(ctx, func(records record.Store, entries audit.Store) error {
		var err error
		rec, err = records.SoftDelete(ctx, eventID, userID, now, actorID)
		if err != nil {
			return err
		}
		return entries.Append(ctx, &models.AuditLogEntry{
			RecordID:        rec.ID,
			Action:          models.AuditSoftDelete,
			ActorID:         actorID,
			Timestamp:       now,
			ResultingStatus: rec.Status,
		})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.WrapWithReason(err, dErrors.CodeNotFound, models.ReasonRecordNotFound,
				"no attendance record to remove")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove attendance record")
	}

	s.countDeletion()
	s.logAudit(ctx, "attendance.record_deleted",
		"record_id", rec.ID.String(),
		"event_id", eventID.String(),
		"user_id", userID.String(),
		"actor_id", actorID.String())
	return nil
}

// IssueCheckInToken mints a short-lived token for the event's QR code,
// pinned to the current secret version.
func (s *Service) IssueCheckInToken(ctx context.Context, actorID id.UserID, eventID id.EventID) (token string, expiresAt time.Time, err error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return "", time.Time{}, err
	}
	actor, err := s.resolveActor(ctx, actorID, event.TeamID)
	if err != nil {
		return "", time.Time{}, err
	}
	if !actor.Can(models.CapabilityManualOverride) {
		return "", time.Time{}, dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"issuing check-in tokens requires the manual override capability")
	}

	now := requestcontext.Now(ctx)
	token, expiresAt, err = s.tokens.Mint(eventID, event.QRSecretVersion, now)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint check-in token")
	}

	s.countTokenIssued()
	s.logAudit(ctx, "attendance.token_issued",
		"event_id", eventID.String(),
		"actor_id", actorID.String(),
		"secret_version", event.QRSecretVersion,
		"expires_at", expiresAt)
	return token, expiresAt, nil
}

// RegenerateQRSecret bumps the event's secret version. Every outstanding
// token minted against the old version stops validating immediately.
func (s *Service) RegenerateQRSecret(ctx context.Context, actorID id.UserID, eventID id.EventID) (int, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	actor, err := s.resolveActor(ctx, actorID, event.TeamID)
	if err != nil {
		return 0, err
	}
	if !actor.Can(models.CapabilityManualOverride) {
		return 0, dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"regenerating the event code requires the manual override capability")
	}

	version, err := s.events.BumpQRSecretVersion(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to regenerate event code")
	}

	s.logAudit(ctx, "attendance.qr_secret_regenerated",
		"event_id", eventID.String(),
		"actor_id", actorID.String(),
		"secret_version", version)
	return version, nil
}

// ListAttendance returns the event's non-deleted records, oldest first.
func (s *Service) ListAttendance(ctx context.Context, eventID id.EventID) ([]*models.AttendanceRecord, error) {
	if _, err := s.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}
	recs, err := s.records.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return recs, nil
}

// History returns a user's non-deleted records with check-in time in
// [from, to), oldest first.
func (s *Service) History(ctx context.Context, userID id.UserID, from, to time.Time) ([]*models.AttendanceRecord, error) {
	if !to.After(from) {
		return nil, dErrors.New(dErrors.CodeValidation, "history range end must be after start")
	}
	recs, err := s.records.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance history")
	}
	return recs, nil
}

// AuditTrail is the record's full history, including records that standard
// reads no longer return. This read is how a disputed deletion gets
// reconstructed, so it requires the manual override capability.
func (s *Service) AuditTrail(ctx context.Context, actorID id.UserID, recordID id.RecordID) (*models.AttendanceRecord, []*models.AuditLogEntry, error) {
	rec, err := s.records.GetIncludingDeleted(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.NewWithReason(dErrors.CodeNotFound, models.ReasonRecordNotFound,
				"attendance record not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance record")
	}

	event, err := s.loadEvent(ctx, rec.EventID)
	if err != nil {
		return nil, nil, err
	}
	actor, err := s.resolveActor(ctx, actorID, event.TeamID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Can(models.CapabilityManualOverride) {
		return nil, nil, dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"reading the audit trail requires the manual override capability")
	}

	trail, err := s.entries.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return rec, trail, nil
}

func (s *Service) loadEvent(ctx context.Context, eventID id.EventID) (*models.Event, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load event")
	}
	return event, nil
}

// resolveActor computes the actor's capability set fresh for this request.
// Capabilities are never cached across requests; a role change takes effect
// on the next call.
func (s *Service) resolveActor(ctx context.Context, actorID id.UserID, teamID id.TeamID) (models.ActorContext, error) {
	override, err := s.roles.HasManualOverrideCapability(ctx, actorID, teamID)
	if err != nil {
		return models.ActorContext{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve actor capabilities")
	}
	actor := models.ActorContext{UserID: actorID}
	if override {
		actor.Capabilities = []models.Capability{models.CapabilityManualOverride}
	}
	return actor, nil
}

// authorizeOnBehalf allows self-service or the manual override capability.
func (s *Service) authorizeOnBehalf(ctx context.Context, actorID, targetUserID id.UserID, teamID id.TeamID) error {
	if actorID == targetUserID {
		return nil
	}
	actor, err := s.resolveActor(ctx, actorID, teamID)
	if err != nil {
		return err
	}
	if !actor.Can(models.CapabilityManualOverride) {
		return dErrors.NewWithReason(dErrors.CodeForbidden, models.ReasonNotAuthorized,
			"acting on another member's attendance requires the manual override capability")
	}
	return nil
}

func (s *Service) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Log(ctx, level, msg, args...)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) countAcceptance(method models.Method) {
	if s.metrics != nil {
		s.metrics.CheckinsAccepted.WithLabelValues(string(method)).Inc()
	}
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	reason := dErrors.ReasonOf(err)
	if reason == "" {
		reason = "OTHER"
	}
	s.metrics.CheckinsRejected.WithLabelValues(string(reason)).Inc()
}

func (s *Service) countDeviceConflict() {
	if s.metrics != nil {
		s.metrics.DeviceConflicts.Inc()
	}
}

func (s *Service) countCheckout() {
	if s.metrics != nil {
		s.metrics.Checkouts.Inc()
	}
}

func (s *Service) countDeletion() {
	if s.metrics != nil {
		s.metrics.RecordsDeleted.Inc()
	}
}

func (s *Service) countTokenIssued() {
	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
}
