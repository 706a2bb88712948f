// Package middleware carries the request-scoped plumbing every endpoint
// shares: request IDs, a pinned request time, client metadata, and the actor
// identity resolved by the upstream auth gateway.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// HeaderActorID is set by the upstream identity gateway after it has
// authenticated the caller. This service never resolves credentials itself;
// it consumes an already-resolved actor identity.
const HeaderActorID = "X-Actor-ID"

// HeaderDeviceFingerprint carries the opaque client device fingerprint.
const HeaderDeviceFingerprint = "X-Device-Fingerprint"

type contextKeyActorID struct{}

// ContextKeyActorID is exported for tests that build contexts directly.
var ContextKeyActorID = contextKeyActorID{}

// RequestID assigns a fresh request ID to each request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRequestID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime captures the current time at the start of the request so every
// decision within it observes the same instant.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata extracts client IP, User-Agent, and the device fingerprint
// header into the context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), clientIP(r), r.Header.Get("User-Agent"))
		if fp := r.Header.Get(HeaderDeviceFingerprint); fp != "" {
			ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor demands a resolved actor identity on the request and rejects
// requests without one. The identity arrives from the gateway as a header;
// handlers read it back with ActorID.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := id.ParseUserID(r.Header.Get(HeaderActorID))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyActorID, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithActorID injects an actor identity into a context. Useful for handler
// tests that skip the middleware chain.
func WithActorID(ctx context.Context, actorID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// ActorID retrieves the authenticated actor from the context. Zero when unset.
func ActorID(ctx context.Context) id.UserID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.UserID); ok {
		return actorID
	}
	return id.UserID{}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For may list client, proxy1, proxy2; the first entry is
		// the original client.
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}
