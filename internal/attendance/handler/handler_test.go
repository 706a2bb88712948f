package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance/authz"
	"rollcall/internal/attendance/device"
	"rollcall/internal/attendance/geofence"
	"rollcall/internal/attendance/models"
	"rollcall/internal/attendance/qrtoken"
	"rollcall/internal/attendance/service"
	auditStore "rollcall/internal/attendance/store/audit"
	eventStore "rollcall/internal/attendance/store/event"
	groupStore "rollcall/internal/attendance/store/group"
	recordStore "rollcall/internal/attendance/store/record"
	roleStore "rollcall/internal/attendance/store/role"
	"rollcall/internal/platform/middleware"

	id "rollcall/pkg/domain"
)

type testEnv struct {
	router  chi.Router
	tokens  *qrtoken.Issuer
	event   *models.Event
	member  id.UserID
	member2 id.UserID
	coach   id.UserID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	events := eventStore.NewMemory()
	records := recordStore.NewMemory()
	entries := auditStore.NewMemory()
	groups := groupStore.NewMemory()
	roles := roleStore.NewMemory()
	tokens := qrtoken.New("handler-test-key", 5*time.Minute)

	env := &testEnv{
		router:  chi.NewRouter(),
		tokens:  tokens,
		member:  id.NewUserID(),
		member2: id.NewUserID(),
		coach:   id.NewUserID(),
	}

	team := id.NewTeamID()
	if err := roles.Assign(ctx, env.coach, team, roleStore.RoleCoach); err != nil {
		t.Fatalf("assign coach role: %v", err)
	}

	env.event = &models.Event{
		ID:              id.NewEventID(),
		TeamID:          team,
		StartsAt:        time.Now().Add(-30 * time.Minute),
		EndsAt:          time.Now().Add(90 * time.Minute),
		Visibility:      models.VisibilityFullTeam,
		QRSecretVersion: 1,
	}
	if err := events.Create(ctx, env.event); err != nil {
		t.Fatalf("create event: %v", err)
	}

	svc := service.New(
		events,
		records,
		entries,
		service.NewMemoryTx(records, entries),
		authz.New(time.Hour, time.Hour, groups),
		tokens,
		geofence.New(100),
		roles,
		service.WithGuard(device.NewMemoryGuard()),
	)
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, actor id.UserID, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if !actor.IsNil() {
		req.Header.Set(middleware.HeaderActorID, actor.String())
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mintToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.tokens.Mint(e.event.ID, e.event.QRSecretVersion, time.Now())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func decodeReason(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Reason
}

func TestActorHeaderRequired(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/events/"+env.event.ID.String()+"/attendance", id.UserID{}, nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor header, got %d", rec.Code)
	}
}

func TestCheckInViaIssuedToken(t *testing.T) {
	env := newTestEnv(t)

	// The coach issues the event token, as the QR display screen would.
	issueRec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/qr-token", env.coach, nil, nil)
	if issueRec.Code != http.StatusOK {
		t.Fatalf("expected 200 issuing token, got %d: %s", issueRec.Code, issueRec.Body.String())
	}
	var issued struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(issueRec.Body).Decode(&issued); err != nil {
		t.Fatalf("decode token response: %v", err)
	}
	if issued.Token == "" || issued.ExpiresAt.IsZero() {
		t.Fatalf("expected token and expiry, got %+v", issued)
	}

	rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
		map[string]any{"method": "qr", "qr_token": issued.Token},
		map[string]string{middleware.HeaderDeviceFingerprint: "fp-member"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created recordResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if created.UserID != env.member.String() || created.Status != "checked_in" {
		t.Fatalf("unexpected record: %+v", created)
	}
	if created.DeviceFingerprint == nil || *created.DeviceFingerprint != "fp-member" {
		t.Fatalf("expected header fingerprint on record, got %+v", created.DeviceFingerprint)
	}

	t.Run("duplicate is a conflict", func(t *testing.T) {
		dup := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
			map[string]any{"method": "qr", "qr_token": env.mintToken(t)},
			map[string]string{middleware.HeaderDeviceFingerprint: "fp-member"})
		if dup.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", dup.Code)
		}
		if reason := decodeReason(t, dup); reason != "DUPLICATE_CHECKIN" {
			t.Fatalf("expected DUPLICATE_CHECKIN, got %q", reason)
		}
	})

	t.Run("second user on the same device is a conflict", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member2,
			map[string]any{"method": "qr", "qr_token": env.mintToken(t)},
			map[string]string{middleware.HeaderDeviceFingerprint: "fp-member"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if reason := decodeReason(t, rec); reason != "DEVICE_ALREADY_USED" {
			t.Fatalf("expected DEVICE_ALREADY_USED, got %q", reason)
		}
	})
}

func TestCheckInValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unknown method", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
			map[string]any{"method": "telepathy"}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("member may not issue tokens", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/qr-token", env.member, nil, nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("unknown event", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/events/"+id.NewEventID().String()+"/attendance", env.member,
			map[string]any{"method": "qr", "qr_token": env.mintToken(t), "device_fingerprint": "fp"}, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCheckOutFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
		map[string]any{"method": "qr", "qr_token": env.mintToken(t), "device_fingerprint": "fp-a"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	out := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance/checkout", env.member,
		map[string]any{}, nil)
	if out.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", out.Code, out.Body.String())
	}
	var checkedOut recordResponse
	if err := json.NewDecoder(out.Body).Decode(&checkedOut); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if checkedOut.Status != "checked_out" || checkedOut.CheckedOutAt == nil {
		t.Fatalf("unexpected record after checkout: %+v", checkedOut)
	}

	t.Run("repeat checkout is a conflict", func(t *testing.T) {
		again := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance/checkout", env.member,
			map[string]any{}, nil)
		if again.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", again.Code)
		}
		if reason := decodeReason(t, again); reason != "ALREADY_CHECKED_OUT" {
			t.Fatalf("expected ALREADY_CHECKED_OUT, got %q", reason)
		}
	})

	t.Run("coach checks out another member", func(t *testing.T) {
		manual := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.coach,
			map[string]any{"method": "manual", "user_id": env.member2.String()}, nil)
		if manual.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", manual.Code, manual.Body.String())
		}
		out := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance/checkout", env.coach,
			map[string]any{"user_id": env.member2.String()}, nil)
		if out.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", out.Code, out.Body.String())
		}
	})
}

func TestDeleteAndAuditTrail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
		map[string]any{"method": "qr", "qr_token": env.mintToken(t), "device_fingerprint": "fp-a"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var created recordResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode record: %v", err)
	}

	t.Run("member may not delete", func(t *testing.T) {
		del := env.do(t, http.MethodDelete,
			"/events/"+env.event.ID.String()+"/attendance/"+env.member.String(), env.member, nil, nil)
		if del.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", del.Code)
		}
	})

	del := env.do(t, http.MethodDelete,
		"/events/"+env.event.ID.String()+"/attendance/"+env.member.String(), env.coach, nil, nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", del.Code, del.Body.String())
	}

	t.Run("listing no longer includes the record", func(t *testing.T) {
		list := env.do(t, http.MethodGet, "/events/"+env.event.ID.String()+"/attendance", env.coach, nil, nil)
		if list.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", list.Code)
		}
		var recs []recordResponse
		if err := json.NewDecoder(list.Body).Decode(&recs); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		if len(recs) != 0 {
			t.Fatalf("expected empty list, got %d records", len(recs))
		}
	})

	t.Run("audit trail reaches the deleted record", func(t *testing.T) {
		trail := env.do(t, http.MethodGet, "/attendance/"+created.ID+"/audit", env.coach, nil, nil)
		if trail.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", trail.Code, trail.Body.String())
		}
		var resp auditTrailResponse
		if err := json.NewDecoder(trail.Body).Decode(&resp); err != nil {
			t.Fatalf("decode trail: %v", err)
		}
		if !resp.Record.IsDeleted {
			t.Fatalf("expected deleted record in trail, got %+v", resp.Record)
		}
		if len(resp.Entries) != 2 || resp.Entries[1].Action != "soft_delete" {
			t.Fatalf("unexpected trail entries: %+v", resp.Entries)
		}
	})

	t.Run("trail is capability gated", func(t *testing.T) {
		trail := env.do(t, http.MethodGet, "/attendance/"+created.ID+"/audit", env.member, nil, nil)
		if trail.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", trail.Code)
		}
	})
}

func TestHistoryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/events/"+env.event.ID.String()+"/attendance", env.member,
		map[string]any{"method": "qr", "qr_token": env.mintToken(t), "device_fingerprint": "fp-a"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	hist := env.do(t, http.MethodGet, "/users/"+env.member.String()+"/attendance", env.member, nil, nil)
	if hist.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", hist.Code, hist.Body.String())
	}
	var recs []recordResponse
	if err := json.NewDecoder(hist.Body).Decode(&recs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	t.Run("malformed range", func(t *testing.T) {
		bad := env.do(t, http.MethodGet,
			"/users/"+env.member.String()+"/attendance?from=yesterday", env.member, nil, nil)
		if bad.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", bad.Code)
		}
	})
}
