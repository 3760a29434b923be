package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/infra/logging"
	"psychic-credits/internal/infra/metrics"
	"psychic-credits/internal/usecase"
)

const roleAdmin = "admin"

// Claims is what the identity service puts into our bearer tokens.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator turns an Authorization header into a usecase.Actor.
type Authenticator struct {
	secret   []byte
	adminKey string
}

func NewAuthenticator(secret, adminAPIKey string) *Authenticator {
	return &Authenticator{secret: []byte(secret), adminKey: adminAPIKey}
}

// Issue signs a token for the actor. Used by the seed tool and tests.
func (a *Authenticator) Issue(actor usecase.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: actor.Email,
		Name:  actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if actor.Admin {
		claims.Role = roleAdmin
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) actorFromRequest(r *http.Request) (usecase.Actor, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return usecase.Actor{}, errors.New("missing token")
	}
	tok := strings.TrimSpace(hdr[7:])
	if a.adminKey != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(a.adminKey)) == 1 {
		return usecase.Actor{UserID: "admin-key", Admin: true}, nil
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return usecase.Actor{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return usecase.Actor{}, errors.New("token has no subject")
	}
	return usecase.Actor{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Admin:  claims.Role == roleAdmin,
	}, nil
}

type actorKey struct{}

func withActor(ctx context.Context, a usecase.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the caller set by RequireUser.
func ActorFrom(ctx context.Context) (usecase.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(usecase.Actor)
	return a, ok
}

// RequireUser rejects requests without a valid bearer token.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.actorFromRequest(r)
		if err != nil {
			writeError(w, r, domain.ErrUnauthorized, false)
			return
		}
		ctx := withActor(logging.WithUserID(r.Context(), actor.UserID), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok || !actor.Admin {
				metrics.IncAdminRequest(action, "unauthorized")
				writeError(w, r, domain.ErrForbidden, false)
				return
			}
			metrics.IncAdminRequest(action, "authorized")
			next.ServeHTTP(w, r)
		})
	}
}
