package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestJWT_Authenticate(t *testing.T) {
	user := uuid.New()
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		header  string
		want    uuid.UUID
		wantErr error
	}{
		{
			name:   "valid",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: user.String(), ExpiresAt: future}),
			want:   user,
		},
		{name: "missing header", header: "", wantErr: ErrMissingCredentials},
		{name: "wrong scheme", header: "Basic abc", wantErr: ErrMissingCredentials},
		{
			name:    "expired",
			header:  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: user.String(), ExpiresAt: past}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "no expiry",
			header:  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: user.String()}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "wrong secret",
			header:  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), jwt.RegisteredClaims{Subject: user.String(), ExpiresAt: future}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "other hmac size",
			header:  "Bearer " + sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.RegisteredClaims{Subject: user.String(), ExpiresAt: future}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "subject not a uuid",
			header:  "Bearer " + sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future}),
			wantErr: ErrInvalidToken,
		},
	}

	a := NewJWT(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/goals", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := a.Authenticate(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("Authenticate() = %v, %v", got, err)
			}
		})
	}
}

func TestHeader_Authenticate(t *testing.T) {
	user := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, user.String())
	if got, err := (Header{}).Authenticate(r); err != nil || got != user {
		t.Errorf("Authenticate() = %v, %v", got, err)
	}

	r.Header.Set(HeaderUserID, "not-a-uuid")
	if _, err := (Header{}).Authenticate(r); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}

	r.Header.Del(HeaderUserID)
	if _, err := (Header{}).Authenticate(r); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestMiddleware(t *testing.T) {
	user := uuid.New()
	var seen uuid.UUID
	h := Middleware(Header{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("UserIDFromContext() error = %v", err)
		}
		seen = id
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	r.Header.Set(HeaderUserID, user.String())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || seen != user {
		t.Errorf("status = %d, user = %v", rec.Code, seen)
	}
}
