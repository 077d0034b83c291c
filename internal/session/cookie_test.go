// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newCodec(t *testing.T, now func() time.Time) *session.Codec {
	t.Helper()
	signer, err := sec.NewSigner(testSecret, constants.SessionIssuer)
	require.NoError(t, err)
	return session.NewCodec(signer, constants.SessionMaxAge, true, now)
}

/*
TestCodec_RoundTrip verifies that every session field survives the signed cookie.
*/
func TestCodec_RoundTrip(t *testing.T) {
	codec := newCodec(t, func() time.Time { return epoch })
	current := session.Establish(customer, accessToken(t, epoch.Add(time.Hour).Unix()), epoch, time.Minute)

	value, err := codec.Encode(current.WithError(session.ErrRefreshFailed))
	require.NoError(t, err)

	decoded, err := codec.Decode(value)
	require.NoError(t, err)

	expected := *current
	expected.Error = session.ErrRefreshFailed
	assert.Equal(t, expected, *decoded)
}

/*
TestCodec_Rejects verifies tampered, foreign and over-age cookies.
*/
func TestCodec_Rejects(t *testing.T) {
	now := epoch
	codec := newCodec(t, func() time.Time { return now })
	current := session.Establish(customer, "opaque", epoch, time.Minute)

	value, err := codec.Encode(current)
	require.NoError(t, err)

	// 1. Tampered payload
	tampered := []byte(value)
	dot := strings.IndexByte(value, '.')
	if tampered[dot+1] == 'A' {
		tampered[dot+1] = 'B'
	} else {
		tampered[dot+1] = 'A'
	}
	_, err = codec.Decode(string(tampered))
	assert.ErrorIs(t, err, session.ErrMalformed)

	// 2. Signed with another secret
	otherSigner, err := sec.NewSigner("ffffffffffffffffffffffffffffffff", constants.SessionIssuer)
	require.NoError(t, err)
	foreign, err := session.NewCodec(otherSigner, constants.SessionMaxAge, true, nil).Encode(current)
	require.NoError(t, err)
	_, err = codec.Decode(foreign)
	assert.ErrorIs(t, err, session.ErrMalformed)

	// 3. Older than the cookie max age
	now = epoch.Add(constants.SessionMaxAge + time.Second)
	_, err = codec.Decode(value)
	assert.ErrorIs(t, err, session.ErrMalformed)
}

/*
TestCodec_WriteAndClear verifies cookie attributes.
*/
func TestCodec_WriteAndClear(t *testing.T) {
	codec := newCodec(t, func() time.Time { return epoch })
	current := session.Establish(customer, "opaque", epoch, time.Minute)

	recorder := httptest.NewRecorder()
	require.NoError(t, codec.Write(recorder, current))

	cookies := recorder.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, constants.SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, int(constants.SessionMaxAge.Seconds()), cookies[0].MaxAge)

	recorder = httptest.NewRecorder()
	codec.Clear(recorder)
	cleared := recorder.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

/*
TestStore_LoadAndDestroy verifies the request-level session lifecycle, including revocation.
*/
func TestStore_LoadAndDestroy(t *testing.T) {
	clock := func() time.Time { return epoch }
	codec := newCodec(t, clock)
	store := session.NewStore(codec, session.NewMemoryRevocations(clock), clock)
	current := session.Establish(customer, "opaque", epoch, time.Hour)

	// 1. No cookie
	_, err := store.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrNoSession)

	// 2. Valid cookie
	recorder := httptest.NewRecorder()
	require.NoError(t, store.Save(recorder, current))
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(recorder.Result().Cookies()[0])

	loaded, err := store.Load(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, loaded.Valid(epoch))
	assert.Equal(t, current.ID, loaded.ID)

	// 3. Sign out through a bound provider, then replay the same cookie
	signOutRecorder := httptest.NewRecorder()
	provider := store.Bind(signOutRecorder, loaded)
	require.NoError(t, provider.SignOut(context.Background()))
	assert.Less(t, signOutRecorder.Result().Cookies()[0].MaxAge, 0)

	_, err = store.Load(context.Background(), request)
	assert.ErrorIs(t, err, session.ErrRevoked)
}

/*
TestRevocations_Memory verifies deadline handling of the in-process store.
*/
func TestRevocations_Memory(t *testing.T) {
	now := epoch
	store := session.NewMemoryRevocations(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "a", epoch.Add(time.Minute)))
	require.NoError(t, store.Revoke(ctx, "past", epoch.Add(-time.Minute)))

	revoked, err := store.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = store.IsRevoked(ctx, "past")
	assert.False(t, revoked)

	now = epoch.Add(time.Minute)
	revoked, _ = store.IsRevoked(ctx, "a")
	assert.False(t, revoked)
}

/*
TestRevocations_Redis verifies TTL-based revocation against an in-memory Redis.
*/
func TestRevocations_Redis(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := session.NewRedisRevocations(client)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "sess-1", time.Now().Add(time.Minute)))

	revoked, err := store.IsRevoked(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	server.FastForward(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// A broken backend surfaces an error so callers can fail closed
	server.Close()
	_, err = store.IsRevoked(ctx, "sess-1")
	assert.Error(t, err)
}
