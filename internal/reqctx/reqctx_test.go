package reqctx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	reqid "github.com/hanpama/stitchgate/internal/reqid"
)

const secret = "s3cret"

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sign(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return tok
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-1",
		"roles": []any{"admin", 7, "editor"},
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func newBuilder(opts ...Option) *Builder {
	return NewBuilder(append([]Option{WithSecret(secret), WithClock(func() time.Time { return now })}, opts...)...)
}

func TestBuild_Anonymous(t *testing.T) {
	c, err := newBuilder().Build(Request{Method: "POST", Path: "/api/graphql", RemoteAddr: "10.0.0.1:5000"})
	require.NoError(t, err)
	require.Nil(t, c.Identity)
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), c.ClientIP)
	require.Equal(t, "/api/graphql", c.Path)
}

func TestBuild_BearerToken(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+sign(t, secret, validClaims()))

	c, err := newBuilder().Build(Request{Header: h})
	require.NoError(t, err)
	require.NotNil(t, c.Identity)
	require.Equal(t, "user-1", c.Identity.UserID)
	require.Equal(t, []string{"admin", "editor"}, c.Identity.Roles)
	require.True(t, c.Identity.HasRole("editor"))
	require.False(t, c.Identity.HasRole("owner"))
	require.Equal(t, "user-1", c.Identity.Claims["sub"])
}

func TestBuild_CookieToken(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/graphql", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: sign(t, secret, validClaims())})

	c, err := newBuilder(WithCookie("session")).Build(FromHTTP(r))
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Identity.UserID)

	// default cookie name is not consulted once renamed
	r = httptest.NewRequest("POST", "/api/graphql", nil)
	r.AddCookie(&http.Cookie{Name: DefaultCookie, Value: sign(t, secret, validClaims())})
	c, err = newBuilder(WithCookie("session")).Build(FromHTTP(r))
	require.NoError(t, err)
	require.Nil(t, c.Identity)
}

func TestBuild_InvalidTokens(t *testing.T) {
	expired := validClaims()
	expired["exp"] = now.Add(-time.Minute).Unix()
	noSubject := validClaims()
	delete(noSubject, "sub")

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage", header: "Bearer not.a.jwt"},
		{name: "wrong key", header: "Bearer " + sign(t, "other", validClaims())},
		{name: "expired", header: "Bearer " + sign(t, secret, expired)},
		{name: "no subject", header: "Bearer " + sign(t, secret, noSubject)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			h.Set("Authorization", tc.header)
			_, err := newBuilder().Build(Request{Header: h})
			var ire *InvalidRequestError
			require.ErrorAs(t, err, &ire)
		})
	}
}

func TestBuild_BadCookieTokenIsAnonymous(t *testing.T) {
	expired := validClaims()
	expired["exp"] = now.Add(-time.Minute).Unix()

	for name, value := range map[string]string{
		"expired":   sign(t, secret, expired),
		"wrong key": sign(t, "other", validClaims()),
		"garbage":   "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/graphql", nil)
			r.AddCookie(&http.Cookie{Name: DefaultCookie, Value: value})

			c, err := newBuilder().Build(FromHTTP(r))
			require.NoError(t, err)
			require.Nil(t, c.Identity)
		})
	}
}

func TestBuild_HeaderWinsOverCookie(t *testing.T) {
	expired := validClaims()
	expired["exp"] = now.Add(-time.Minute).Unix()

	// a valid header token is used even next to a stale cookie
	r := httptest.NewRequest("POST", "/api/graphql", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, secret, validClaims()))
	r.AddCookie(&http.Cookie{Name: DefaultCookie, Value: sign(t, secret, expired)})
	c, err := newBuilder().Build(FromHTTP(r))
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Identity.UserID)

	// a bad header token is still rejected when the cookie is valid
	r = httptest.NewRequest("POST", "/api/graphql", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, secret, expired))
	r.AddCookie(&http.Cookie{Name: DefaultCookie, Value: sign(t, secret, validClaims())})
	_, err = newBuilder().Build(FromHTTP(r))
	var ire *InvalidRequestError
	require.ErrorAs(t, err, &ire)
}

func TestBuild_LeewayAcceptsSkew(t *testing.T) {
	claims := validClaims()
	claims["exp"] = now.Add(-10 * time.Second).Unix()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+sign(t, secret, claims))

	c, err := newBuilder(WithLeeway(time.Minute)).Build(Request{Header: h})
	require.NoError(t, err)
	require.Equal(t, "user-1", c.Identity.UserID)
}

func TestBuild_NoSecretIgnoresTokens(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer whatever")

	c, err := NewBuilder().Build(Request{Header: h})
	require.NoError(t, err)
	require.Nil(t, c.Identity)
}

func TestBuild_ClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trust      bool
		forwarded  []string
		remoteAddr string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "forwarded ignored without trust", forwarded: []string{"203.0.113.9"}, remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "first forwarded entry", trust: true, forwarded: []string{"203.0.113.9, 10.0.0.2"}, remoteAddr: "192.0.2.1:1234", want: "203.0.113.9"},
		{name: "malformed entries skipped", trust: true, forwarded: []string{"unknown, ", "2001:db8::1"}, remoteAddr: "192.0.2.1:1234", want: "2001:db8::1"},
		{name: "all malformed", trust: true, forwarded: []string{"nope"}, remoteAddr: "[::ffff:192.0.2.7]:80", want: "192.0.2.7"},
		{name: "unparsable remote", remoteAddr: "pipe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for _, f := range tc.forwarded {
				h.Add("X-Forwarded-For", f)
			}
			c, err := NewBuilder(WithTrustProxy(tc.trust)).Build(Request{Header: h, RemoteAddr: tc.remoteAddr})
			require.NoError(t, err)
			if tc.want == "" {
				require.False(t, c.ClientIP.IsValid())
				return
			}
			require.Equal(t, netip.MustParseAddr(tc.want), c.ClientIP)
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+sign(t, secret, validClaims()))
	req := Request{RequestID: "r-1", Method: "POST", Header: h, RemoteAddr: "192.0.2.1:1"}

	b := newBuilder()
	first, err := b.Build(req)
	require.NoError(t, err)
	second, err := b.Build(req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestFromHTTPAndContext(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/graphql?query=x", nil)
	ctx, id := reqid.NewContext(r.Context())
	r = r.WithContext(ctx)
	r.Header.Set("Origin", "https://app.example")
	r.Header.Set("User-Agent", "test")

	c, err := NewBuilder().Build(FromHTTP(r))
	require.NoError(t, err)
	require.Equal(t, id, c.RequestID)
	require.Equal(t, "https://app.example", c.Origin)
	require.Equal(t, "test", c.UserAgent)

	got, ok := FromContext(NewContext(context.Background(), c))
	require.True(t, ok)
	require.Same(t, c, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)
}
