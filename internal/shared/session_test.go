package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "fakturo_session", "test-secret", time.Hour, false)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.True(t, sess.isNew)

	sess.SetUser("42", "admin")
	sess.Set("preferred_period", "2026-08")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "fakturo_session", cookies[0].Name)

	// Reload using the issued cookie.
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req2)
	require.NoError(t, err)
	assert.False(t, loaded.isNew)
	assert.Equal(t, "42", loaded.User())
	assert.Equal(t, "admin", loaded.Role())
	assert.Equal(t, "2026-08", loaded.Get("preferred_period"))
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser("7", "user")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookie := rec.Result().Cookies()[0]

	sm.Destroy(sess)
	rec2 := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec2, req, sess))

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.AddCookie(cookie)
	reloaded, err := sm.Load(ctx, req3)
	require.NoError(t, err)
	assert.Empty(t, reloaded.User(), "destroyed session must not resolve a user")
}
