package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"accounting/internal/core"
)

// Identity headers set by the authenticating gateway in front of the service.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	RoleAdmin = "admin"
)

type actorKey struct{}

// Actor is the caller as asserted by the gateway.
type Actor struct {
	ID    int64
	Admin bool
}

func actorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// identify reads the gateway headers. Requests without them continue
// anonymously; a malformed id is rejected outright.
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("%w: malformed %s header", core.ErrInvalidValue, HeaderActorID))
			return
		}
		a := Actor{ID: id, Admin: strings.EqualFold(r.Header.Get(HeaderActorRole), RoleAdmin)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, a)))
	})
}

func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r.Context()); !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := actorFrom(r.Context())
		switch {
		case !ok:
			writeError(w, r, errUnauthenticated)
		case !a.Admin:
			writeError(w, r, errForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// selfOrAdmin allows access to a user's own record, or to any record for admins.
func selfOrAdmin(ctx context.Context, userID int64) error {
	a, ok := actorFrom(ctx)
	switch {
	case !ok:
		return errUnauthenticated
	case a.Admin || a.ID == userID:
		return nil
	default:
		return errForbidden
	}
}
