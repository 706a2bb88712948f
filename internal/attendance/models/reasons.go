package models

import dErrors "rollcall/pkg/domain-errors"

// Wire-stable denial reasons. These are part of the API contract: clients
// branch on them and they must never be reworded.
const (
	// Authorization.
	ReasonOutsideTimeWindow  dErrors.Reason = "OUTSIDE_TIME_WINDOW"
	ReasonNotAuthorized      dErrors.Reason = "NOT_AUTHORIZED"
	ReasonNotInAssignedGroup dErrors.Reason = "NOT_IN_ASSIGNED_GROUP"

	// Evidence validation.
	ReasonQRExpired          dErrors.Reason = "QR_EXPIRED"
	ReasonQRInvalidSignature dErrors.Reason = "QR_INVALID_SIGNATURE"
	ReasonQREventMismatch    dErrors.Reason = "QR_EVENT_MISMATCH"
	ReasonQRStaleVersion     dErrors.Reason = "QR_STALE_VERSION"
	ReasonOutsideRadius      dErrors.Reason = "OUTSIDE_RADIUS"
	ReasonNoPositionSignal   dErrors.Reason = "NO_POSITION_SIGNAL"

	// Conflict.
	ReasonDeviceAlreadyUsed dErrors.Reason = "DEVICE_ALREADY_USED"
	ReasonDuplicateCheckin  dErrors.Reason = "DUPLICATE_CHECKIN"

	// State.
	ReasonAlreadyCheckedOut dErrors.Reason = "ALREADY_CHECKED_OUT"
	ReasonRecordNotFound    dErrors.Reason = "RECORD_NOT_FOUND"
)
