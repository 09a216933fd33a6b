package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/internal/testutil"
	"github.com/postroom/postroom/models"
	"github.com/postroom/postroom/postcache"
	"github.com/postroom/postroom/service"
	"github.com/postroom/postroom/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret    = "server-test-secret"
	testAdminPass = "hunter2"
	testPassword  = "Passw0rdX"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.NewGormStore(testutil.TestDB(t))
	require.NoError(t, err)

	cache := postcache.New(100, time.Minute, nil)
	codec := auth.NewTokenCodec([]byte(testSecret), time.Minute)
	srv, err := NewServer(
		service.NewPostService(st, st, cache, nil),
		service.NewAccountService(st, cache, codec, nil),
		auth.NewGate(codec, nil),
		st,
		Config{
			AdminPasswords: []string{testAdminPass},
			Registerer:     prometheus.NewRegistry(),
		},
	)
	require.NoError(t, err)
	return srv
}

type request struct {
	method string
	path   string
	token  string
	body   any
	admin  string
}

func (srv *Server) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if r.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.admin != "" {
		req.SetBasicAuth("admin", r.admin)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signup(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := srv.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email":    email,
		"password": testPassword,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[TokenResponse](t, rec)
	require.Equal(t, "bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func createPost(t *testing.T, srv *Server, token, text string) models.Post {
	t.Helper()
	rec := srv.do(t, request{method: http.MethodPost, path: "/posts", token: token, body: map[string]string{"text": text}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Post](t, rec)
}

func TestEmailWhitespaceIsTrimmed(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := srv.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email":    "  carol@example.com ",
		"password": testPassword,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    "\tCarol@Example.com",
		"password": testPassword,
	}})
	assert.Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email":    "carol@example.com  ",
		"password": testPassword,
	}})
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal("EmailTaken", decode[GenericError](t, rec).Error)
}

func TestSignupAndLogin(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	signup(t, srv, "Alice@example.com")

	rec := srv.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	}})
	assert.Equal(http.StatusBadRequest, rec.Code)
	assert.Equal("EmailTaken", decode[GenericError](t, rec).Error)

	rec = srv.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    "alice@example.com",
		"password": testPassword,
	}})
	assert.Equal(http.StatusOK, rec.Code)
	assert.NotEmpty(decode[TokenResponse](t, rec).AccessToken)

	rec = srv.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email":    "alice@example.com",
		"password": "Wrong0password",
	}})
	assert.Equal(http.StatusUnauthorized, rec.Code)
	assert.Equal("InvalidCredentials", decode[GenericError](t, rec).Error)
}

func TestSignupValidation(t *testing.T) {
	srv := testServer(t)

	for _, body := range []map[string]string{
		{"email": "not-an-email", "password": testPassword},
		{"email": "bob@example.com", "password": "short1A"},
		{"email": "bob@example.com", "password": "alllowercase1"},
		{"email": "bob@example.com", "password": "NoDigitsHere"},
		{"email": "bob@example.com"},
	} {
		rec := srv.do(t, request{method: http.MethodPost, path: "/auth/signup", body: body})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "%v", body)
		assert.Equal(t, "ValidationFailed", decode[GenericError](t, rec).Error)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPostsRequireToken(t *testing.T) {
	srv := testServer(t)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		for _, r := range []request{
			{method: http.MethodGet, path: "/posts"},
			{method: http.MethodPost, path: "/posts", body: map[string]string{"text": "hi"}},
			{method: http.MethodDelete, path: "/posts/1"},
			{method: http.MethodGet, path: "/posts/stats"},
		} {
			r.token = tok
			rec := srv.do(t, r)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", r.method, r.path)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			body := decode[GenericError](t, rec)
			assert.Equal(t, "Unauthorized", body.Error)
			assert.Equal(t, auth.ErrUnauthorized.Error(), body.Message)
		}
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	srv := testServer(t)
	signup(t, srv, "carol@example.com")

	stale := auth.NewTokenCodec([]byte(testSecret), time.Second)
	stale.Now = func() time.Time { return time.Now().Add(-2 * time.Second) }
	tok, err := stale.Issue(1, "carol@example.com")
	require.NoError(t, err)

	rec := srv.do(t, request{method: http.MethodGet, path: "/posts", token: tok})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	srv := testServer(t)
	tok := signup(t, srv, "dave@example.com")

	rec := srv.do(t, request{method: http.MethodGet, path: "/posts", token: tok})
	require.Equal(http.StatusOK, rec.Code)
	assert.JSONEq("[]", rec.Body.String())

	hello := createPost(t, srv, tok, "hello")
	assert.Equal("hello", hello.Text)
	assert.Equal(models.Uid(1), hello.OwnerID)
	assert.NotZero(hello.ID)
	assert.False(hello.CreatedAt.IsZero())

	rec = srv.do(t, request{method: http.MethodGet, path: "/posts", token: tok})
	require.Equal(http.StatusOK, rec.Code)
	listed := decode[[]models.Post](t, rec)
	require.Len(listed, 1)
	assert.Equal("hello", listed[0].Text)

	second := createPost(t, srv, tok, "second")
	rec = srv.do(t, request{method: http.MethodGet, path: "/posts", token: tok})
	listed = decode[[]models.Post](t, rec)
	require.Len(listed, 2)
	assert.Equal(second.ID, listed[0].ID)
	assert.Equal(hello.ID, listed[1].ID)

	rec = srv.do(t, request{method: http.MethodGet, path: "/posts/stats", token: tok})
	require.Equal(http.StatusOK, rec.Code)
	st := decode[service.PostStats](t, rec)
	assert.Equal(models.Uid(1), st.OwnerID)
	assert.Equal(int64(2), st.TotalPosts)
	assert.Equal(100, st.CacheInfo.MaxSize)
	assert.Equal(60.0, st.CacheInfo.TTLSeconds)

	rec = srv.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/posts/%d", hello.ID), token: tok})
	require.Equal(http.StatusOK, rec.Code)
	del := decode[DeletePostResponse](t, rec)
	assert.Equal(hello.ID, del.PostID)

	rec = srv.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/posts/%d", hello.ID), token: tok})
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("PostNotFound", decode[GenericError](t, rec).Error)

	rec = srv.do(t, request{method: http.MethodDelete, path: "/posts/abc", token: tok})
	assert.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func TestCannotDeleteOthersPost(t *testing.T) {
	srv := testServer(t)
	one := signup(t, srv, "one@example.com")
	two := signup(t, srv, "two@example.com")

	p := createPost(t, srv, one, "mine")

	rec := srv.do(t, request{method: http.MethodDelete, path: fmt.Sprintf("/posts/%d", p.ID), token: two})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, request{method: http.MethodGet, path: "/posts", token: one})
	listed := decode[[]models.Post](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, p.ID, listed[0].ID)

	// and two's listing never shows it
	rec = srv.do(t, request{method: http.MethodGet, path: "/posts", token: two})
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreatePostValidation(t *testing.T) {
	srv := testServer(t)
	tok := signup(t, srv, "erin@example.com")

	for name, text := range map[string]string{
		"empty":           "",
		"one byte over":   strings.Repeat("a", MaxPostBytes+1),
		"multibyte runes": strings.Repeat("é", MaxPostBytes/2+1),
	} {
		rec := srv.do(t, request{method: http.MethodPost, path: "/posts", token: tok, body: map[string]string{"text": text}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, name)
		assert.Equal(t, "ValidationFailed", decode[GenericError](t, rec).Error, name)
	}

	rec := srv.do(t, request{method: http.MethodGet, path: "/posts/stats", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[service.PostStats](t, rec).TotalPosts)

	p := createPost(t, srv, tok, strings.Repeat("a", MaxPostBytes))
	assert.Len(t, p.Text, MaxPostBytes)
}

func TestAdminRoutes(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)
	tok := signup(t, srv, "frank@example.com")
	createPost(t, srv, tok, "bye")

	rec := srv.do(t, request{method: http.MethodDelete, path: "/admin/accounts/1"})
	assert.Equal(http.StatusUnauthorized, rec.Code)
	assert.Contains(rec.Header().Get("WWW-Authenticate"), "Basic")

	rec = srv.do(t, request{method: http.MethodDelete, path: "/admin/accounts/1", admin: "wrong"})
	assert.Equal(http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, request{method: http.MethodDelete, path: "/admin/accounts/1", admin: testAdminPass})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(models.Uid(1), decode[DeleteAccountResponse](t, rec).OwnerID)

	rec = srv.do(t, request{method: http.MethodDelete, path: "/admin/accounts/1", admin: testAdminPass})
	assert.Equal(http.StatusNotFound, rec.Code)

	// the token is still well formed, but nothing is left behind it
	rec = srv.do(t, request{method: http.MethodGet, path: "/posts", token: tok})
	assert.JSONEq("[]", rec.Body.String())
	rec = srv.do(t, request{method: http.MethodPost, path: "/posts", token: tok, body: map[string]string{"text": "ghost"}})
	assert.Equal(http.StatusNotFound, rec.Code)
	assert.Equal("OwnerNotFound", decode[GenericError](t, rec).Error)

	rec = srv.do(t, request{method: http.MethodPost, path: "/admin/cache/purge", admin: testAdminPass})
	assert.Equal(http.StatusOK, rec.Code)
}

func TestHealthAndHome(t *testing.T) {
	srv := testServer(t)

	rec := srv.do(t, request{method: http.MethodGet, path: "/_health"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[GenericStatus](t, rec).Status)

	rec = srv.do(t, request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "postroom", decode[HomeResponse](t, rec).Service)

	rec = srv.do(t, request{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFound", decode[GenericError](t, rec).Error)
}
