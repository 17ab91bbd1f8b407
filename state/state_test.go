package state

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend has to share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyLocale, "de"))
	v, err := s.Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.Equal(t, "de", v)

	require.NoError(t, s.Set(ctx, KeyLocale, "en"))
	v, err = s.Get(ctx, KeyLocale)
	require.NoError(t, err)
	assert.Equal(t, "en", v)

	require.NoError(t, s.Delete(ctx, KeyLocale))
	_, err = s.Get(ctx, KeyLocale)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is fine
	require.NoError(t, s.Delete(ctx, KeyLocale))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	type item struct {
		ID   string `json:"id"`
		Keys []string
	}
	require.NoError(t, SaveJSON(ctx, s, KeyTasks, []item{{ID: "t1", Keys: []string{"a"}}}))

	var got []item
	require.NoError(t, LoadJSON(ctx, s, KeyTasks, &got))
	assert.Equal(t, []item{{ID: "t1", Keys: []string{"a"}}}, got)

	assert.ErrorIs(t, LoadJSON(ctx, s, "nothing", &got), ErrNotFound)

	require.NoError(t, s.Set(ctx, "broken", "{"))
	assert.Error(t, LoadJSON(ctx, s, "broken", &got))
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	sess := Session{Store: NewMemory()}
	now := time.Unix(1_700_000_000, 0)

	var user map[string]any
	ok, err := sess.User(ctx, &user)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, sess.SessionValid(ctx, now))

	require.NoError(t, sess.SetUser(ctx, map[string]any{"username": "ada"}, now.Add(time.Hour)))
	ok, err = sess.User(ctx, &user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada", user["username"])

	exp, err := sess.SessionExpiry(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).Unix(), exp.Unix())
	assert.True(t, sess.SessionValid(ctx, now))
	assert.False(t, sess.SessionValid(ctx, now.Add(2*time.Hour)))

	cookies, err := sess.AuthCookies(ctx)
	require.NoError(t, err)
	assert.Nil(t, cookies)
	require.NoError(t, sess.SetAuthCookies(ctx, []*http.Cookie{{Name: "tekstuserauth", Value: "abc"}}))
	cookies, err = sess.AuthCookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "tekstuserauth", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)

	require.NoError(t, sess.ClearUser(ctx))
	ok, err = sess.User(ctx, &user)
	require.NoError(t, err)
	assert.False(t, ok)
	cookies, err = sess.AuthCookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	require.NoError(t, sess.SetLocale(ctx, "de"))
	require.NoError(t, sess.SetText(ctx, "faust"))
	assert.Equal(t, "de", sess.Locale(ctx))
	assert.Equal(t, "faust", sess.Text(ctx))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendPostgres})
	assert.ErrorContains(t, err, "DATABASE_URL")
}
