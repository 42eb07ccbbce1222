package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/socialgraph/internal/auth"
	"github.com/sakif/socialgraph/internal/config"
	"github.com/sakif/socialgraph/internal/model"
	sqliteRepo "github.com/sakif/socialgraph/internal/repository/sqlite"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		DBPath:    sqliteRepo.MemoryPath,
		JWTSecret: "server-test-secret-0123456789",
		UploadDir: t.TempDir(),
		TokenTTL:  auth.DefaultTokenTTL,
	}
	s, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// client is a browser-like session: it keeps the token cookie.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *client) send(method, path string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.base+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *client) json(method, path string, payload any) *http.Response {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}
	return c.send(method, path, body, "application/json")
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func signup(t *testing.T, ts *httptest.Server, username string) (*client, model.AccountUser) {
	t.Helper()
	c := newClient(t, ts)
	resp := c.json(http.MethodPost, "/auth/signup", map[string]string{"username": username, "password": "secret1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decodeBody[struct {
		User model.AccountUser `json:"user"`
	}](t, resp)
	return c, res.User
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	health := c.send(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, health))

	resp := c.send(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "socialgraph_http_request_duration_seconds")
	assert.Contains(t, string(raw), "go_goroutines")
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	resp := c.send(http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestPrivateAccountJourney(t *testing.T) {
	ts := newTestServer(t)
	owner, ownerUser := signup(t, ts, "owner")
	fan, fanUser := signup(t, ts, "fan")

	resp := owner.json(http.MethodPatch, "/api/me/privacy", map[string]bool{"isPrivate": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Owner posts a photo.
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "sunset"))
	fw, err := mw.CreateFormFile("photos", "sunset.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp = owner.send(http.MethodPost, "/api/posts", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decodeBody[model.PostSummary](t, resp)
	require.Len(t, post.Images, 1)

	// The stored file is served back as-is.
	img := fan.send(http.MethodGet, post.Images[0].ImageURL, nil, "")
	require.Equal(t, http.StatusOK, img.StatusCode)
	served, err := io.ReadAll(img.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, served)

	// Private: the fan is locked out until accepted.
	resp = fan.send(http.MethodGet, "/api/posts/"+itoa(post.ID), nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = fan.send(http.MethodPost, "/api/account/"+itoa(ownerUser.ID)+"/follow", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.StatusRequested, decodeBody[model.FollowResult](t, resp).Status)

	resp = owner.send(http.MethodGet, "/api/account/requests", nil, "")
	requests := decodeBody[[]model.FollowRequest](t, resp)
	require.Len(t, requests, 1)
	assert.Equal(t, fanUser.ID, requests[0].Sender.ID)

	resp = owner.send(http.MethodPatch, "/api/account/request/"+itoa(requests[0].ID)+"/accept", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = fan.send(http.MethodGet, "/api/posts/"+itoa(post.ID), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decodeBody[model.PostDetail](t, resp)
	assert.Equal(t, "sunset", detail.Title)
	assert.Equal(t, ownerUser.ID, detail.Author.ID)

	resp = fan.send(http.MethodPost, "/api/posts/"+itoa(post.ID)+"/like", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[model.LikeResult](t, resp).Liked)

	// Logout drops the cookie, and with it access.
	resp = fan.send(http.MethodPost, "/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = fan.send(http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
