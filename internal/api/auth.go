package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/rg/smsrelay/internal/config"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Principal is the authenticated caller.
type Principal struct {
	Username string
	Roles    []string
}

func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

type principalKey struct{}

// PrincipalFrom returns the caller stored by Authenticator.Middleware.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// Authenticator checks HTTP basic credentials against a single configured
// account. In "none" mode every request runs as an anonymous caller holding
// every role.
type Authenticator struct {
	mode     string
	username string
	hash     []byte
	roles    []string
}

func NewAuthenticator(cfg config.AuthConfig) (*Authenticator, error) {
	a := &Authenticator{
		mode:     cfg.Mode,
		username: cfg.Username,
		roles:    cfg.Roles,
	}

	switch cfg.Mode {
	case config.AuthModeNone, "":
		a.mode = config.AuthModeNone
		return a, nil
	case config.AuthModeBasic:
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}

	if cfg.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid password hash: %w", err)
		}
		a.hash = []byte(cfg.PasswordHash)
		return a, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	a.hash = hash
	return a, nil
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == config.AuthModeNone {
			p := &Principal{Username: "anonymous", Roles: []string{RoleUser, RoleAdmin}}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !a.check(user, pass) {
			if ok {
				slog.Warn("Authentication failed", "user", user, "request_id", middleware.GetReqID(r.Context()))
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="smsrelay", charset="UTF-8"`)
			sendJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "authentication required",
				Code:  http.StatusUnauthorized,
			})
			return
		}

		p := &Principal{Username: user, Roles: a.roles}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func (a *Authenticator) check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
	// Always compare the password so a wrong user costs as much as a wrong password.
	passOK := bcrypt.CompareHashAndPassword(a.hash, []byte(pass)) == nil
	return userOK && passOK
}

// RequireAnyRole rejects callers holding none of roles.
func RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			for _, role := range roles {
				if p.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			sendJSON(w, http.StatusForbidden, errorResponse{
				Error: "forbidden",
				Code:  http.StatusForbidden,
			})
		})
	}
}
