// Package reqctx builds the per-request context handed to resolvers.
//
// Build is a pure function of a Request descriptor and the builder's clock:
// the same request at the same instant always yields the same Context.
package reqctx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	reqid "github.com/hanpama/stitchgate/internal/reqid"
)

// DefaultCookie is the cookie holding the auth token when no Authorization
// header is sent.
const DefaultCookie = "token"

// Request describes the parts of an incoming request the context is derived
// from.
type Request struct {
	RequestID  string
	Method     string
	Path       string
	Header     http.Header
	RemoteAddr string
}

// FromHTTP adapts a net/http request.
func FromHTTP(r *http.Request) Request {
	id, _ := reqid.FromContext(r.Context())
	return Request{
		RequestID:  id,
		Method:     r.Method,
		Path:       r.URL.Path,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	}
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Roles  []string
	Claims map[string]any
}

// HasRole reports whether the identity carries role.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Context is the request-scoped value resolvers read through FromContext.
type Context struct {
	RequestID string
	Method    string
	Path      string
	ClientIP  netip.Addr
	UserAgent string
	Origin    string
	// Identity is nil for anonymous requests.
	Identity *Identity
}

// InvalidRequestError reports a request whose context cannot be built, such
// as one whose Authorization header is malformed or carries an expired token.
type InvalidRequestError struct {
	Reason string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Reason, e.Err)
	}
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }

// Options configures a Builder.
type Options struct {
	// Secret verifies HMAC-signed tokens. Without it tokens are not trusted
	// and every request is anonymous.
	Secret []byte
	// Cookie names the auth cookie; defaults to DefaultCookie.
	Cookie string
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration
	// Now is the clock tokens are checked against; defaults to time.Now.
	Now func() time.Time
}

type Option func(*Options)

func WithSecret(secret string) Option { return func(o *Options) { o.Secret = []byte(secret) } }
func WithCookie(name string) Option   { return func(o *Options) { o.Cookie = name } }
func WithTrustProxy(on bool) Option   { return func(o *Options) { o.TrustProxy = on } }
func WithLeeway(d time.Duration) Option {
	return func(o *Options) { o.Leeway = d }
}
func WithClock(now func() time.Time) Option { return func(o *Options) { o.Now = now } }

// Builder derives a Context from a Request.
type Builder struct {
	opt    Options
	parser *jwt.Parser
}

func NewBuilder(opts ...Option) *Builder {
	o := Options{Cookie: DefaultCookie, Now: time.Now}
	for _, f := range opts {
		f(&o)
	}
	return &Builder{
		opt: o,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
			jwt.WithTimeFunc(o.Now),
			jwt.WithLeeway(o.Leeway),
		),
	}
}

// Build derives the request context. It fails with *InvalidRequestError when
// the Authorization header is malformed or its token cannot be verified. A
// cookie token that fails verification leaves the request anonymous, since
// browsers keep sending stale cookies after they expire.
func (b *Builder) Build(req Request) (*Context, error) {
	h := req.Header
	if h == nil {
		h = http.Header{}
	}
	c := &Context{
		RequestID: req.RequestID,
		Method:    req.Method,
		Path:      req.Path,
		ClientIP:  b.clientIP(h, req.RemoteAddr),
		UserAgent: h.Get("User-Agent"),
		Origin:    h.Get("Origin"),
	}
	if len(b.opt.Secret) == 0 {
		return c, nil
	}

	raw, fromCookie, err := b.token(h)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return c, nil
	}
	id, err := b.verify(raw)
	if err != nil {
		if fromCookie {
			return c, nil
		}
		return nil, err
	}
	c.Identity = id
	return c, nil
}

// token returns the raw token and whether it came from the auth cookie.
// The Authorization header wins over the cookie.
func (b *Builder) token(h http.Header) (string, bool, error) {
	if auth := h.Get("Authorization"); auth != "" {
		scheme, tok, ok := strings.Cut(auth, " ")
		tok = strings.TrimSpace(tok)
		if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return "", false, &InvalidRequestError{Reason: "malformed Authorization header"}
		}
		return tok, false, nil
	}
	if ck, err := (&http.Request{Header: h}).Cookie(b.opt.Cookie); err == nil {
		return ck.Value, true, nil
	}
	return "", false, nil
}

func (b *Builder) verify(raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	_, err := b.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return b.opt.Secret, nil
	})
	if err != nil {
		return nil, &InvalidRequestError{Reason: "invalid token", Err: err}
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, &InvalidRequestError{Reason: "token has no subject", Err: err}
	}
	return &Identity{UserID: sub, Roles: roles(claims["roles"]), Claims: claims}, nil
}

func roles(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, r := range list {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// clientIP prefers the first valid X-Forwarded-For entry when proxies are
// trusted. Malformed entries are skipped.
func (b *Builder) clientIP(h http.Header, remoteAddr string) netip.Addr {
	if b.opt.TrustProxy {
		for _, line := range h.Values("X-Forwarded-For") {
			for _, part := range strings.Split(line, ",") {
				if addr, err := netip.ParseAddr(strings.TrimSpace(part)); err == nil {
					return addr.Unmap()
				}
			}
		}
	}
	host := remoteAddr
	if hp, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = hp
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

type ctxKey struct{}

// NewContext stores c on ctx.
func NewContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the request context stored by NewContext.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}
