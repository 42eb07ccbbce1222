package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/socialgraph/internal/auth"
	"github.com/sakif/socialgraph/internal/handler"
	"github.com/sakif/socialgraph/internal/model"
	"github.com/sakif/socialgraph/internal/repository/sqlite"
	"github.com/sakif/socialgraph/internal/service"
	"github.com/sakif/socialgraph/internal/upload"
)

// testEnv runs the handlers against an in-memory database and a temporary
// upload directory. Requests skip token handling: the viewer is put into the
// context directly.
type testEnv struct {
	db       *sqlite.DB
	uploads  *upload.Store
	accounts *service.AccountService
	router   chi.Router
	logs     *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	db, err := sqlite.New(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	uploads, err := upload.NewStore(t.TempDir())
	require.NoError(t, err)

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", 0)
	require.NoError(t, err)

	accounts := service.NewAccountService(db, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), uploads, logger, nil)
	relations := service.NewRelationshipService(db, logger, nil)
	posts := service.NewEngagementService(db, uploads, logger, nil)
	recommend := service.NewRecommendationService(db, logger)

	authH := handler.NewAuthHandler(accounts, tokens.TTL(), logger)
	accountH := handler.NewAccountHandler(accounts, relations, recommend, uploads, logger)
	postH := handler.NewPostHandler(posts, uploads, logger)

	r := chi.NewRouter()
	r.Post("/auth/signup", authH.HandleSignup)
	r.Post("/auth/login", authH.HandleLogin)
	r.Post("/auth/logout", authH.HandleLogout)

	r.Get("/api/me", accountH.HandleMe)
	r.Patch("/api/me/privacy", accountH.HandleSetPrivacy)
	r.Patch("/api/me/username", accountH.HandleChangeUsername)
	r.Put("/api/me/avatar", accountH.HandleSetAvatar)
	r.Delete("/api/me/avatar", accountH.HandleClearAvatar)

	r.Get("/api/account/search/{text}", accountH.HandleSearch)
	r.Get("/api/account/recommended", accountH.HandleRecommended)
	r.Get("/api/account/requests", accountH.HandlePendingRequests)
	r.Patch("/api/account/request/{id}/accept", accountH.HandleRespond(service.Accept))
	r.Patch("/api/account/request/{id}/decline", accountH.HandleRespond(service.Decline))
	r.Post("/api/account/{id}/follow", accountH.HandleToggleFollow)
	r.Get("/api/account/{id}", accountH.HandleProfile)
	r.Get("/api/account/{id}/followers", accountH.HandleFollowers)
	r.Get("/api/account/{id}/followings", accountH.HandleFollowings)
	r.Get("/api/account/{id}/posts", postH.HandleListByUser)

	r.Post("/api/posts", postH.HandleCreate)
	r.Get("/api/posts/{id}", postH.HandleGet)
	r.Post("/api/posts/{id}/like", postH.HandleLike)
	r.Post("/api/posts/{id}/comments", postH.HandleComment)

	return &testEnv{db: db, uploads: uploads, accounts: accounts, router: r, logs: logs}
}

// user creates an account through the service so its password works.
func (e *testEnv) user(t *testing.T, username string, private bool) int64 {
	t.Helper()
	res, err := e.accounts.Signup(context.Background(), service.SignupInput{Username: username, Password: "secret1"})
	require.NoError(t, err)
	if private {
		_, err = e.accounts.SetPrivacy(context.Background(), res.User.ID, true)
		require.NoError(t, err)
	}
	return res.User.ID
}

// do sends a request as viewerID; zero means anonymous.
func (e *testEnv) do(t *testing.T, viewerID int64, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if viewerID != 0 {
		req = req.WithContext(auth.WithViewerID(req.Context(), viewerID))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, viewerID int64, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return e.do(t, viewerID, method, path, body, "application/json")
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, errorType string) handler.ErrorResponse {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	res := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, errorType, res.Error)
	return res
}

func pathf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// logged returns the log entries with the given message.
func (e *testEnv) logged(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(e.logs.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == msg {
			entries = append(entries, entry)
		}
	}
	return entries
}

// =========================================================================
// AUTH
// =========================================================================

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rr := env.doJSON(t, 0, http.MethodPost, "/auth/signup", map[string]string{
		"username": "alice",
		"password": "secret1",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(auth.DefaultTokenTTL.Seconds()), cookies[0].MaxAge)

	res := decode[struct {
		User  model.AccountUser `json:"user"`
		Token string            `json:"token"`
	}](t, rr)
	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, cookies[0].Value, res.Token)

	dup := env.doJSON(t, 0, http.MethodPost, "/auth/signup", map[string]string{"username": "alice", "password": "secret2"})
	assertError(t, dup, http.StatusConflict, "conflict")
}

func TestSignup_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"malformed json", `{"username":`, ""},
		{"unknown field", `{"username":"alice","password":"secret1","email":"a@b.c"}`, ""},
		{"missing password", `{"username":"alice"}`, "password"},
		{"missing username", `{"password":"secret1"}`, "username"},
		{"short password", `{"username":"alice","password":"123"}`, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, 0, http.MethodPost, "/auth/signup", bytes.NewBufferString(tt.body), "application/json")
			res := assertError(t, rr, http.StatusBadRequest, "validation_error")
			assert.Equal(t, tt.field, res.Field)
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "alice", false)

	rr := env.doJSON(t, 0, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Len(t, rr.Result().Cookies(), 1)
	assert.NotEmpty(t, rr.Result().Cookies()[0].Value)

	bad := env.doJSON(t, 0, http.MethodPost, "/auth/login", map[string]string{"username": "alice", "password": "nope!!"})
	res := assertError(t, bad, http.StatusBadRequest, "validation_error")
	assert.Equal(t, "Invalid username or password", res.Message)

	out := env.do(t, 0, http.MethodPost, "/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, out.Code)
	cookies := out.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestProtectedRoutesNeedViewer(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/me", "/api/account/requests", "/api/account/1", "/api/posts/1"} {
		rr := env.do(t, 0, http.MethodGet, path, nil, "")
		assertError(t, rr, http.StatusUnauthorized, "unauthorized")
	}
}

// =========================================================================
// ERROR RENDERING
// =========================================================================

func TestOpaqueErrorsAreNotLeaked(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.user(t, "alice", false)

	// A closed database produces a driver error, not an AppError.
	require.NoError(t, env.db.Close())

	rr := env.do(t, viewer, http.MethodGet, "/api/me", nil, "")
	res := assertError(t, rr, http.StatusInternalServerError, "internal_error")
	assert.Equal(t, "An internal error occurred", res.Message)
	assert.NotContains(t, rr.Body.String(), "sql")
}
