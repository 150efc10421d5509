// Package auth resolves the calling user. Tokens are issued elsewhere; this
// package only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// HeaderUserID carries the user in header mode.
const HeaderUserID = "X-User-Id"

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthenticated    = errors.New("user not authenticated")
)

// Authenticator extracts the user from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (uuid.UUID, error)
}

// JWT verifies HS256 bearer tokens whose subject is the user UUID.
type JWT struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWT(secret string) *JWT {
	return &JWT{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (a *JWT) Authenticate(r *http.Request) (uuid.UUID, error) {
	h := r.Header.Get("Authorization")
	tokenStr, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(tokenStr) == "" {
		return uuid.Nil, ErrMissingCredentials
	}

	token, err := a.parser.ParseWithClaims(strings.TrimSpace(tokenStr), &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	uid, err := uuid.Parse(sub)
	if err != nil || uid == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return uid, nil
}

// Header trusts the X-User-Id header. Local development and tests only.
type Header struct{}

func (Header) Authenticate(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return uuid.Nil, ErrMissingCredentials
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", ErrInvalidToken, HeaderUserID)
	}
	return id, nil
}

// Middleware stores the authenticated user in the request context. Failures
// are passed to onFail, which writes the 401.
func Middleware(a Authenticator, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, err := a.Authenticate(r)
			if err != nil {
				if onFail != nil {
					onFail(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uid)))
		})
	}
}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	uid, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrUnauthenticated
	}
	return uid, nil
}
