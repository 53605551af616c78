package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_RegisterLoginMeLogout(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, "POST", "/api/auth/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, true, body(t, w)["success"])

	var registered struct {
		Role         string `json:"role"`
		PasswordHash string `json:"password_hash"`
	}
	field(t, w, "user", &registered)
	assert.Equal(t, "user", registered.Role)
	assert.Empty(t, registered.PasswordHash)

	w = api.do(t, "POST", "/api/auth/login", map[string]string{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token string
	field(t, w, "token", &token)
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// the cookie alone authenticates
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	api.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)

	var user struct {
		Email string `json:"email"`
	}
	field(t, me, "user", &user)
	assert.Equal(t, "a@x.com", user.Email)

	w = api.do(t, "POST", "/api/auth/logout", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, "GET", "/api/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RegisterErrors(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, "POST", "/api/auth/register", map[string]string{
		"name": "A", "email": "a@x.com", "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	tests := []struct {
		name    string
		payload map[string]string
		status  int
		message string
	}{
		{"duplicate email", map[string]string{"name": "B", "email": "a@x.com", "password": "another1"}, http.StatusConflict, "email is already registered"},
		{"missing name", map[string]string{"email": "b@x.com", "password": "secret1"}, http.StatusBadRequest, "name, email and password are required"},
		{"bad email", map[string]string{"name": "B", "email": "nope", "password": "secret1"}, http.StatusBadRequest, "invalid email format"},
		{"weak password", map[string]string{"name": "B", "email": "b@x.com", "password": "12345"}, http.StatusBadRequest, "password must be at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, "POST", "/api/auth/register", tt.payload, "")
			assert.Equal(t, tt.status, w.Code)

			resp := body(t, w)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tt.message, resp["message"])
		})
	}
}

func TestAuthHandler_MalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest("POST", "/api/auth/register", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body(t, w)["success"])
}

func TestAuthHandler_LoginFailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t)
	user, _ := api.seedUser(t, domain.RoleUser)

	wrongPassword := api.do(t, "POST", "/api/auth/login", map[string]string{"email": user.Email, "password": "wrong-one"}, "")
	unknownEmail := api.do(t, "POST", "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": testPassword}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, body(t, wrongPassword)["message"], body(t, unknownEmail)["message"])
}

func TestAuthHandler_LoginIsRateLimited(t *testing.T) {
	api := newTestAPI(t)

	for i := 0; i < testLoginLimit; i++ {
		w := api.do(t, "POST", "/api/auth/login", map[string]string{"email": "a@x.com", "password": "bad"}, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := api.do(t, "POST", "/api/auth/login", map[string]string{"email": "a@x.com", "password": "bad"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// registration is not limited
	w = api.do(t, "POST", "/api/auth/register", map[string]string{"name": "A", "email": "a@x.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuthHandler_LoginRotatesSession(t *testing.T) {
	api := newTestAPI(t)
	user, oldToken := api.seedUser(t, domain.RoleUser)

	w := api.do(t, "POST", "/api/auth/login", map[string]string{"email": user.Email, "password": testPassword}, oldToken)
	require.Equal(t, http.StatusOK, w.Code)

	var newToken string
	field(t, w, "token", &newToken)

	assert.Equal(t, http.StatusUnauthorized, api.do(t, "GET", "/api/auth/me", nil, oldToken).Code)
	assert.Equal(t, http.StatusOK, api.do(t, "GET", "/api/auth/me", nil, newToken).Code)
}

// Anything registered over HTTP can log in over HTTP
func TestProperty_RegisteredUsersCanLogIn(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 10
	properties := gopter.NewProperties(parameters)

	properties.Property("register then login succeeds", prop.ForAll(
		func(local string, password string) bool {
			api := newTestAPI(t)
			email := local + "@example.com"

			w := api.do(t, "POST", "/api/auth/register", map[string]string{
				"name": "Prop", "email": email, "password": password,
			}, "")
			if w.Code != http.StatusCreated {
				return false
			}

			w = api.do(t, "POST", "/api/auth/login", map[string]string{"email": email, "password": password}, "")
			return w.Code == http.StatusOK
		},
		gen.RegexMatch(`[a-z][a-z0-9]{2,12}`),
		gen.RegexMatch(`[A-Za-z0-9]{6,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
