package httpapi

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"campusevents-backend/internal/services"
)

const sessionCookie = "token"

type identityKey struct{}

// SecurityRecorder appends security events. Implementations must not fail
// the request.
type SecurityRecorder interface {
	Record(ctx context.Context, eventType, message string, meta services.Meta)
}

// AuthError is a failed identity resolution. Absent marks that the request
// carried no credentials of the resolver's kind.
type AuthError struct {
	Status  int
	Message string
	Event   string
	Absent  bool
}

func (e AuthError) Error() string { return e.Message }

// IdentityResolver turns a request into the caller's identity.
type IdentityResolver interface {
	Resolve(r *http.Request) (services.Identity, error)
}

type SessionResolver struct {
	Tokens services.TokenService
}

func (s SessionResolver) Resolve(r *http.Request) (services.Identity, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return services.Identity{}, AuthError{
			Status:  http.StatusUnauthorized,
			Message: "Access denied. No token provided.",
			Event:   services.EventNoToken,
			Absent:  true,
		}
	}
	id, err := s.Tokens.Parse(cookie.Value)
	if err != nil {
		return services.Identity{}, AuthError{
			Status:  http.StatusUnauthorized,
			Message: "Invalid or expired token",
			Event:   services.EventTokenInvalid,
		}
	}
	return id, nil
}

// AdminLookup finds the active admin account for a certificate email.
type AdminLookup func(ctx context.Context, email string) (services.Identity, error)

var subjectEmail = regexp.MustCompile(`(?i)emailAddress=([^,/\n]+)`)

// CertResolver trusts a TLS-terminating proxy that verified a client
// certificate and forwarded the result in x-ssl-verify and x-ssl-subject.
type CertResolver struct {
	Lookup AdminLookup
}

func (c CertResolver) Resolve(r *http.Request) (services.Identity, error) {
	verify := strings.TrimSpace(r.Header.Get("x-ssl-verify"))
	subject := strings.TrimSpace(r.Header.Get("x-ssl-subject"))
	if verify == "" && subject == "" {
		return services.Identity{}, certFailure("Client certificate required", true)
	}
	if verify != "SUCCESS" || subject == "" {
		return services.Identity{}, certFailure("Invalid or missing client certificate", false)
	}
	email := CertificateEmail(subject)
	if email == "" {
		return services.Identity{}, certFailure("Email not found in certificate", false)
	}
	id, err := c.Lookup(r.Context(), email)
	if err != nil {
		var serr services.ServiceError
		if errors.As(err, &serr) {
			return services.Identity{}, certFailure(serr.Message, false)
		}
		return services.Identity{}, err
	}
	return id, nil
}

func certFailure(msg string, absent bool) AuthError {
	return AuthError{Status: http.StatusForbidden, Message: msg, Event: services.EventCertAuthFail, Absent: absent}
}

// CertificateEmail extracts emailAddress from a certificate subject.
func CertificateEmail(subject string) string {
	match := subjectEmail.FindStringSubmatch(subject)
	if len(match) < 2 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(match[1]))
}

// ChainResolver tries resolvers in order. A resolver that finds no
// credentials of its kind defers to the next; any other failure is final.
type ChainResolver []IdentityResolver

func (c ChainResolver) Resolve(r *http.Request) (services.Identity, error) {
	var first error
	for _, resolver := range c {
		id, err := resolver.Resolve(r)
		if err == nil {
			return id, nil
		}
		var aerr AuthError
		if !errors.As(err, &aerr) || !aerr.Absent {
			return services.Identity{}, err
		}
		if first == nil {
			first = err
		}
	}
	if first == nil {
		first = AuthError{Status: http.StatusUnauthorized, Message: "Authentication required", Absent: true}
	}
	return services.Identity{}, first
}

// Authenticate resolves the caller or rejects the request, recording the
// failure as a security event.
func Authenticate(resolver IdentityResolver, audit SecurityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolver.Resolve(r)
			if err != nil {
				var aerr AuthError
				if !errors.As(err, &aerr) {
					WriteError(w, http.StatusInternalServerError, "Internal server error")
					return
				}
				if aerr.Event != "" {
					audit.Record(r.Context(), aerr.Event, aerr.Message, requestMeta(r, nil))
				}
				WriteError(w, aerr.Status, aerr.Message)
				return
			}
			ctx := context.WithValue(r.Context(), identityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CurrentIdentity(r *http.Request) (services.Identity, bool) {
	id, ok := r.Context().Value(identityKey{}).(services.Identity)
	return id, ok
}

func RequireRole(role string, audit SecurityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := CurrentIdentity(r)
			if ok && id.Role == role {
				next.ServeHTTP(w, r)
				return
			}
			meta := requestMeta(r, nil)
			meta["requiredRole"] = role
			if ok {
				meta["roleTried"] = id.Role
				meta["userId"] = id.ID
				meta["email"] = id.Email
			}
			audit.Record(r.Context(), services.EventAuthFail, "Role not permitted for route", meta)
			WriteError(w, http.StatusForbidden, "Access denied")
		})
	}
}

// requestMeta is the common metadata attached to security events.
func requestMeta(r *http.Request, extra services.Meta) services.Meta {
	meta := services.Meta{
		"ip":        clientIP(r),
		"path":      r.URL.Path,
		"method":    r.Method,
		"userAgent": r.UserAgent(),
	}
	if id, ok := CurrentIdentity(r); ok {
		meta["userId"] = id.ID
		meta["email"] = id.Email
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
