package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler(svc *Service) *Handler {
	return NewHandler(svc, CookieConfig{Secure: false, TTL: 7 * 24 * time.Hour})
}

// invoke runs a single handler against a JSON request without going through
// the router, so error returns can be asserted directly.
func invoke(t *testing.T, handler echo.HandlerFunc, method, target, body string, setup func(echo.Context)) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	return rec, handler(c)
}

// sessionCookie finds the session cookie on a response.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookieName {
			return ck
		}
	}
	t.Fatal("no session cookie on response")
	return nil
}

// asAuthenticated attaches a verified session to the context the way
// RequireAuth would.
func asAuthenticated(svc *Service, token string) func(echo.Context) {
	return func(c echo.Context) {
		sess, err := svc.Authenticate(c.Request().Context(), token)
		if err != nil {
			panic("test session did not authenticate: " + err.Error())
		}
		c.Set(contextKeyIdentity, sess.Identity())
		c.Set(contextKeySession, sess)
	}
}

func TestHandler_Register(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestService(NewMemoryStore()))

	rec, err := invoke(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"a@x.com","password":"Secret1!"}`, nil)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	var resp struct {
		Message string `json:"message"`
		User    struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.User.ID == "" {
		t.Error("expected a user id in the response")
	}
	if resp.User.Email != "a@x.com" {
		t.Errorf("email = %q, want a@x.com", resp.User.Email)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response body must not mention the password")
	}

	ck := sessionCookie(t, rec)
	if ck.Value == "" {
		t.Error("session cookie has no token")
	}
	if !ck.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if ck.SameSite != http.SameSiteStrictMode {
		t.Errorf("SameSite = %v, want Strict", ck.SameSite)
	}
	if ck.Path != "/" {
		t.Errorf("Path = %q, want /", ck.Path)
	}
	if ck.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Errorf("MaxAge = %d, want 7 days in seconds", ck.MaxAge)
	}
}

func TestHandler_RegisterSecureCookieInProduction(t *testing.T) {
	t.Parallel()

	h := NewHandler(newTestService(NewMemoryStore()), CookieConfig{Secure: true, TTL: time.Hour})

	rec, err := invoke(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"a@x.com","password":"Secret1!"}`, nil)
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if !sessionCookie(t, rec).Secure {
		t.Error("cookie must carry the Secure flag when configured")
	}
}

func TestHandler_RegisterDuplicate(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestService(NewMemoryStore()))

	if _, err := invoke(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"a@x.com","password":"Secret1!"}`, nil); err != nil {
		t.Fatalf("first Register error: %v", err)
	}

	// Case variant of the same address still conflicts.
	_, err := invoke(t, h.Register, http.MethodPost, "/auth/register",
		`{"email":"A@X.COM","password":"Other2@!"}`, nil)
	assertAppError(t, err, http.StatusConflict)
}

func TestHandler_RegisterValidation(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestService(NewMemoryStore()))

	cases := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{"email": "a@x.com", "password"`, http.StatusBadRequest},
		{"missing email", `{"password":"Secret1!"}`, http.StatusUnprocessableEntity},
		{"invalid email", `{"email":"not-an-email","password":"Secret1!"}`, http.StatusUnprocessableEntity},
		{"missing password", `{"email":"a@x.com"}`, http.StatusUnprocessableEntity},
		{"short password", `{"email":"a@x.com","password":"short"}`, http.StatusUnprocessableEntity},
		{"overlong password", `{"email":"a@x.com","password":"` + strings.Repeat("p", 129) + `"}`, http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := invoke(t, h.Register, http.MethodPost, "/auth/register", tc.body, nil)
			assertAppError(t, err, tc.code)
		})
	}
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	h := newTestHandler(svc)

	if _, _, err := svc.Register(t.Context(), "a@x.com", "Secret1!"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	rec, err := invoke(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"Secret1!"}`, nil)
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// The issued cookie authenticates follow-up requests.
	token := sessionCookie(t, rec).Value
	sess, err := svc.Authenticate(t.Context(), token)
	if err != nil {
		t.Fatalf("cookie token did not authenticate: %v", err)
	}
	if sess.Email != "a@x.com" {
		t.Errorf("session email = %q, want a@x.com", sess.Email)
	}
}

func TestHandler_LoginFailures(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	h := newTestHandler(svc)

	if _, _, err := svc.Register(t.Context(), "a@x.com", "Secret1!"); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	// Wrong password and unknown account produce the same response.
	_, err := invoke(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"wrong"}`, nil)
	wrongPw := assertAppError(t, err, http.StatusUnauthorized)

	_, err = invoke(t, h.Login, http.MethodPost, "/auth/login",
		`{"email":"nobody@x.com","password":"Secret1!"}`, nil)
	unknown := assertAppError(t, err, http.StatusUnauthorized)

	if wrongPw.Message != unknown.Message {
		t.Errorf("login failure messages differ: %q vs %q", wrongPw.Message, unknown.Message)
	}

	// Empty fields are a validation failure, not an auth failure.
	_, err = invoke(t, h.Login, http.MethodPost, "/auth/login", `{"email":"","password":""}`, nil)
	assertAppError(t, err, http.StatusUnprocessableEntity)
}

func TestHandler_Logout(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestService(NewMemoryStore()))

	// No credentials at all: logout still succeeds and clears the cookie.
	rec, err := invoke(t, h.Logout, http.MethodPost, "/auth/logout", "", nil)
	if err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	ck := sessionCookie(t, rec)
	if ck.Value != "" {
		t.Error("cleared cookie should carry an empty value")
	}
	if ck.MaxAge >= 0 {
		t.Errorf("cleared cookie MaxAge = %d, want negative", ck.MaxAge)
	}
}

func TestHandler_Me(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	h := newTestHandler(svc)

	user, token, err := svc.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	rec, err := invoke(t, h.Me, http.MethodGet, "/auth/me", "", asAuthenticated(svc, token))
	if err != nil {
		t.Fatalf("Me error: %v", err)
	}

	var resp struct {
		User struct {
			ID        string     `json:"id"`
			Email     string     `json:"email"`
			CreatedAt *time.Time `json:"createdAt"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.User.ID != user.ID || resp.User.Email != user.Email {
		t.Errorf("me = {%q %q}, want {%q %q}", resp.User.ID, resp.User.Email, user.ID, user.Email)
	}
	if resp.User.CreatedAt == nil {
		t.Error("me response should include createdAt")
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Error("me response must not leak the password hash")
	}
}

func TestHandler_MeWithoutIdentity(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newTestService(NewMemoryStore()))

	_, err := invoke(t, h.Me, http.MethodGet, "/auth/me", "", nil)
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestHandler_ChangePassword(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	h := newTestHandler(svc)

	_, token, err := svc.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	// Wrong current password.
	_, err = invoke(t, h.ChangePassword, http.MethodPut, "/auth/change-password",
		`{"currentPassword":"wrong","newPassword":"NewSecret2!"}`, asAuthenticated(svc, token))
	assertAppError(t, err, http.StatusUnauthorized)

	// New password fails length validation before touching the store.
	_, err = invoke(t, h.ChangePassword, http.MethodPut, "/auth/change-password",
		`{"currentPassword":"Secret1!","newPassword":"short"}`, asAuthenticated(svc, token))
	assertAppError(t, err, http.StatusUnprocessableEntity)

	// Success path: old credential dies, new one works.
	rec, err := invoke(t, h.ChangePassword, http.MethodPut, "/auth/change-password",
		`{"currentPassword":"Secret1!","newPassword":"NewSecret2!"}`, asAuthenticated(svc, token))
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	if _, _, err := svc.Login(t.Context(), "a@x.com", "NewSecret2!"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	_, _, err = svc.Login(t.Context(), "a@x.com", "Secret1!")
	assertAppError(t, err, http.StatusUnauthorized)
}

func TestHandler_DeleteAccount(t *testing.T) {
	t.Parallel()

	svc := newTestService(NewMemoryStore())
	h := newTestHandler(svc)

	user, token, err := svc.Register(t.Context(), "a@x.com", "Secret1!")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	rec, err := invoke(t, h.DeleteAccount, http.MethodDelete, "/auth/delete-account",
		"", asAuthenticated(svc, token))
	if err != nil {
		t.Fatalf("DeleteAccount error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	// Cookie cleared on the way out.
	if ck := sessionCookie(t, rec); ck.MaxAge >= 0 {
		t.Errorf("cleared cookie MaxAge = %d, want negative", ck.MaxAge)
	}

	// Account gone: the still-signed token no longer authenticates.
	if _, err := svc.Authenticate(t.Context(), token); err == nil {
		t.Error("token should not authenticate after account deletion")
	}
	_, err = svc.CurrentUser(t.Context(), user.ID)
	assertAppError(t, err, http.StatusNotFound)
}
