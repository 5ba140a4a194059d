// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/authprowess/authd/internal/handlers"
	"github.com/authprowess/authd/internal/services/auth"
	"github.com/authprowess/authd/internal/services/resettoken"
	"github.com/authprowess/authd/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthHandlers(t *testing.T) (*handlers.AuthHandlers, *testutil.FakeDispatcher) {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	dispatcher := &testutil.FakeDispatcher{}
	svc := auth.NewService(
		repo,
		testutil.NewHasher(),
		resettoken.New(10*time.Minute),
		testutil.NewIssuer(t),
		dispatcher,
		6,
	)
	return handlers.NewAuth(svc), dispatcher
}

func postJSON(path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSignup(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "a@x.com", body["email"])
}

func TestSignup_InvalidEmail(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/signup", `{"email":"not-an-email","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_WeakPassword(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"short"}`)
	require.NoError(t, h.Signup(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_Duplicate(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, rec = postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignin(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, _ := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	c, rec := postJSON("/api/auth/signin", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signin(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])
}

func TestSignin_IdenticalUnauthorizedShape(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, _ := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	// Wrong password vs unknown account: same status, same body
	c, wrongPass := postJSON("/api/auth/signin", `{"email":"a@x.com","password":"wrong-pass"}`)
	require.NoError(t, h.Signin(c))

	c, unknown := postJSON("/api/auth/signin", `{"email":"nobody@x.com","password":"secret1"}`)
	require.NoError(t, h.Signin(c))

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestForgotPassword_ByteIdenticalResponses(t *testing.T) {
	h, dispatcher := newAuthHandlers(t)

	c, _ := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	c, known := postJSON("/api/auth/forgot-password", `{"email":"a@x.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	c, unknown := postJSON("/api/auth/forgot-password", `{"email":"nobody@x.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Contains(t, known.Body.String(), handlers.GenericResetResponse)

	// Only the known account produced a dispatch
	assert.Len(t, dispatcher.Sends(), 1)
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/forgot-password", `{}`)
	require.NoError(t, h.ForgotPassword(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPassword(t *testing.T) {
	h, dispatcher := newAuthHandlers(t)

	c, _ := postJSON("/api/auth/signup", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signup(c))

	c, _ = postJSON("/api/auth/forgot-password", `{"email":"a@x.com"}`)
	require.NoError(t, h.ForgotPassword(c))

	send, err := dispatcher.LastSend()
	require.NoError(t, err)

	c, rec := postJSON("/api/auth/reset-password/"+send.RawToken, `{"password":"secret2"}`)
	c.SetParamNames("token")
	c.SetParamValues(send.RawToken)
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)

	// The new password signs in, the old one does not
	c, rec = postJSON("/api/auth/signin", `{"email":"a@x.com","password":"secret2"}`)
	require.NoError(t, h.Signin(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = postJSON("/api/auth/signin", `{"email":"a@x.com","password":"secret1"}`)
	require.NoError(t, h.Signin(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/reset-password/bogus", `{"password":"secret2"}`)
	c.SetParamNames("token")
	c.SetParamValues("bogus")
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetPassword_MissingPassword(t *testing.T) {
	h, _ := newAuthHandlers(t)

	c, rec := postJSON("/api/auth/reset-password/sometoken", `{}`)
	c.SetParamNames("token")
	c.SetParamValues("sometoken")
	require.NoError(t, h.ResetPassword(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
