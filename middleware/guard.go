package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/fleetAuth"
)

// Authenticator resolves bearer tokens. *fleetAuth.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (fleetAuth.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (fleetAuth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(fleetAuth.Principal)
	return p, ok
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p fleetAuth.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard rejects requests without a valid bearer token. The client IP and X-Request-ID
// header are attached to the context for audit events before the token is checked.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return guard(auth, "")
}

// RequireKind is Guard restricted to principals of one kind. Other valid principals get 403.
func RequireKind(auth Authenticator, kind fleetAuth.PrincipalKind) func(http.Handler) http.Handler {
	return guard(auth, kind)
}

func guard(auth Authenticator, kind fleetAuth.PrincipalKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := RequestContext(r)
			principal, err := auth.Authenticate(ctx, token)
			switch {
			case err == nil:
			case errors.Is(err, fleetAuth.ErrInvalidToken):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			default:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			if kind != "" && principal.Kind() != kind {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
		})
	}
}

// RequestContext returns r's context annotated with the client IP and request id.
func RequestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = fleetAuth.WithClientIP(ctx, ip)
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		ctx = fleetAuth.WithRequestID(ctx, id)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
