package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// runProtected sends a request through RequireAuth into a probe handler and
// returns the identity the handler observed (if it ran) and the error.
func runProtected(t *testing.T, svc *Service, mutate func(*http.Request)) (Identity, bool, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen Identity
	var ran bool
	handler := RequireAuth(svc)(func(c echo.Context) error {
		seen, ran = CurrentIdentity(c)
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	return seen, ran, err
}

func TestRequireAuth_NoToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())

	_, ran, err := runProtected(t, svc, nil)
	if ran {
		t.Fatal("handler ran without a token")
	}
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestRequireAuth_CookieToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	user, token, err := svc.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	seen, ran, err := runProtected(t, svc, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !ran {
		t.Fatal("handler did not run")
	}
	if seen.ID != user.ID || seen.Email != user.Email {
		t.Errorf("identity = %+v, want {%s %s}", seen, user.ID, user.Email)
	}
}

func TestRequireAuth_BearerToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	user, token, err := svc.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	seen, ran, err := runProtected(t, svc, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !ran || seen.ID != user.ID {
		t.Errorf("identity = %+v, want id %s", seen, user.ID)
	}
}

func TestRequireAuth_BearerWinsOverCookie(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	ctx := t.Context()

	bearerUser, bearerToken, err := svc.Register(ctx, "bearer@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	_, cookieToken, err := svc.Register(ctx, "cookie@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	seen, _, err := runProtected(t, svc, func(req *http.Request) {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearerToken)
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookieToken})
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if seen.ID != bearerUser.ID {
		t.Errorf("bearer credential should take precedence, got identity %+v", seen)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	expiredMinter := NewService(store, NewTokenService(testSecret, -1*time.Second), nil)
	svc := NewService(store, NewTokenService(testSecret, time.Hour), nil)

	_, token, err := expiredMinter.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	_, ran, err := runProtected(t, svc, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	})
	if ran {
		t.Fatal("handler ran with an expired token")
	}
	appErr := assertAppError(t, err, http.StatusUnauthorized)
	if appErr.Message != "Token expired" {
		t.Errorf("message = %q, want %q", appErr.Message, "Token expired")
	}
}

func TestRequireAuth_MalformedToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())

	_, ran, err := runProtected(t, svc, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: "not.a.jwt"})
	})
	if ran {
		t.Fatal("handler ran with a malformed token")
	}
	appErr := assertAppError(t, err, http.StatusUnauthorized)
	if appErr.Message != "Invalid token" {
		t.Errorf("message = %q, want %q", appErr.Message, "Invalid token")
	}
}

func TestRequireAuth_DeletedUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	ctx := t.Context()

	user, token, err := svc.Register(ctx, "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := svc.DeleteAccount(ctx, user.ID); err != nil {
		t.Fatalf("DeleteAccount error: %v", err)
	}

	_, ran, err := runProtected(t, svc, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	})
	if ran {
		t.Fatal("handler ran for a deleted user")
	}
	assertAppError(t, err, http.StatusUnauthorized)
}
