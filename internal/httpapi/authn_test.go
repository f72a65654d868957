package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"flowbit.dev/internal/auth"
)

type stubAuthenticator struct {
	principal auth.Principal
	err       error
	calls     int
	token     string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (auth.Principal, error) {
	s.calls++
	s.token = token
	return s.principal, s.err
}

func principalEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		token, _ := auth.TokenFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]string{"user": p.UserID, "token": token})
	})
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	return env
}

func TestAuthenticateSetsPrincipal(t *testing.T) {
	stub := &stubAuthenticator{principal: auth.Principal{UserID: "u-1", TenantID: "T1", Role: auth.RoleUser}}
	h := Pipeline{Authenticate(stub)}.Then(principalEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["user"] != "u-1" || got["token"] != "abc.def.ghi" || stub.token != "abc.def.ghi" {
		t.Fatalf("unexpected principal propagation: %v (stub saw %q)", got, stub.token)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		err      error
		wantCode int
		wantMsg  string
		calls    int
	}{
		{name: "missing", wantCode: http.StatusUnauthorized, wantMsg: "Authorization header missing"},
		{name: "wrong scheme", header: "Token abc", wantCode: http.StatusUnauthorized, wantMsg: "Invalid authorization header format"},
		{name: "expired", header: "Bearer x", err: auth.ErrTokenExpired, wantCode: http.StatusUnauthorized, wantMsg: "Token expired", calls: 1},
		{name: "bad signature", header: "Bearer x", err: auth.ErrTokenInvalid, wantCode: http.StatusUnauthorized, wantMsg: "Invalid token", calls: 1},
		{name: "bad shape", header: "Bearer x", err: auth.ErrClaimsInvalidShape, wantCode: http.StatusUnauthorized, wantMsg: "Invalid token payload", calls: 1},
		{name: "inactive", header: "Bearer x", err: auth.ErrAccountInactive, wantCode: http.StatusUnauthorized, wantMsg: "User account is inactive or deleted", calls: 1},
		{name: "store down", header: "Bearer x", err: errors.New("connection refused"), wantCode: http.StatusInternalServerError, wantMsg: internalErrorMessage, calls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubAuthenticator{err: tc.err}
			reached := false
			h := Pipeline{Authenticate(stub)}.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			})
			req := httptest.NewRequest(http.MethodGet, "/api/tickets", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if reached {
				t.Fatal("handler must not run after a rejected authentication")
			}
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if env := decodeEnvelope(t, rr); env.Success || env.Error != tc.wantMsg {
				t.Fatalf("expected error %q, got %+v", tc.wantMsg, env)
			}
			if stub.calls != tc.calls {
				t.Fatalf("expected %d authenticator calls, got %d", tc.calls, stub.calls)
			}
		})
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	cases := []struct {
		name   string
		header string
		stub   *stubAuthenticator
		want   int
	}{
		{"no header", "", &stubAuthenticator{}, http.StatusNoContent},
		{"malformed", "Basic abc", &stubAuthenticator{}, http.StatusNoContent},
		{"invalid", "Bearer x", &stubAuthenticator{err: auth.ErrTokenInvalid}, http.StatusNoContent},
		{"store error", "Bearer x", &stubAuthenticator{err: errors.New("boom")}, http.StatusNoContent},
		{"valid", "Bearer x", &stubAuthenticator{principal: auth.Principal{UserID: "u-2"}}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Pipeline{OptionalAuth(tc.stub)}.Then(principalEcho(t))
			req := httptest.NewRequest(http.MethodGet, "/api/health/detailed", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
		})
	}
}
