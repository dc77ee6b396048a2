package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderfleet/renderfleet/pkg/auth"
	"github.com/renderfleet/renderfleet/pkg/session"
)

// postForm submits the login form the way a browser would.
func (tg *testGateway) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	tg.server.gin.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == auth.SessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestLoginPage(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.request(t, http.MethodGet, "/login", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `action="/login"`)
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestHomeUnauthenticatedShowsLoginForm(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	// Browsers get the form, not a 401.
	w := tg.request(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="password"`)
	assert.NotContains(t, w.Body.String(), "Sign out")
}

func TestHomeAuthenticatedShowsDashboard(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.request(t, http.MethodGet, "/", tg.login(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sign out")
	assert.Contains(t, w.Body.String(), testOperator)
	assert.NotContains(t, w.Body.String(), `name="password"`)
}

func TestHomeWithStaleTokenShowsLoginForm(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})
	token := tg.login(t)
	require.NoError(t, tg.store.Invalidate(context.Background(), token))

	w := tg.request(t, http.MethodGet, "/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="password"`)
}

func TestFormLogin(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.postForm(t, "/login", url.Values{
		"username": {testOperator},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 86400, cookie.MaxAge)

	// The cookie references a real server-side session.
	sess, err := tg.store.Verify(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, testOperator, sess.Username)
}

func TestFormLoginBadCredentials(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.postForm(t, "/login", url.Values{
		"username": {testOperator},
		"password": {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password.")
	assert.Nil(t, sessionCookie(t, w))
}

func TestJSONLogin(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.request(t, http.MethodPost, "/login", "",
		map[string]string{"username": testOperator, "password": testPassword})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testOperator, resp.Username)
	require.NotEmpty(t, resp.Token)

	// The returned token works as a Bearer credential on the API.
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	tg.server.gin.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJSONLoginBadCredentials(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.request(t, http.MethodPost, "/login", "",
		map[string]string{"username": testOperator, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error": "Unauthorized"}`, w.Body.String())
	assert.Nil(t, sessionCookie(t, w))
}

func TestJSONLoginEmptyCredentialsRejectedNotBadRequest(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	// Empty credentials are a failed login, not a malformed request.
	w := tg.request(t, http.MethodPost, "/login", "",
		map[string]string{"username": "", "password": ""})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJSONLoginMalformedBody(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	tg.server.gin.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})
	token := tg.login(t)

	w := tg.request(t, http.MethodGet, "/logout", token, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	cookie := sessionCookie(t, w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)

	_, err := tg.store.Verify(context.Background(), token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	// The old token no longer opens the API.
	rec := tg.request(t, http.MethodGet, "/api/accounts", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutViaPost(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})
	token := tg.login(t)

	w := tg.request(t, http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusFound, w.Code)

	_, err := tg.store.Verify(context.Background(), token)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLogoutWithoutSession(t *testing.T) {
	tg := newTestGateway(t, &fakeUpstream{})

	w := tg.request(t, http.MethodGet, "/logout", "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}
