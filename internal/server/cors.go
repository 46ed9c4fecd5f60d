package server

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/cors"
)

// ErrCorsRejected is reported for requests whose Origin the policy does not
// allow.
var ErrCorsRejected = errors.New("origin not allowed by CORS policy")

// CORSOptions configures cross-origin access. Without AllowedOrigins only
// same-origin requests are accepted.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

type corsPolicy struct {
	c *cors.Cors
}

func newCORSPolicy(o CORSOptions) *corsPolicy {
	opts := cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   o.AllowedHeaders,
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: o.AllowCredentials,
	}
	if len(o.AllowedOrigins) == 0 {
		opts.AllowOriginRequestFunc = sameOrigin
	}
	return &corsPolicy{c: cors.New(opts)}
}

// allowed reports whether r may proceed. Requests without an Origin and
// same-origin requests always may.
func (p *corsPolicy) allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || sameOrigin(r, origin) {
		return true
	}
	return p.c.OriginAllowed(r)
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// apply writes the CORS response headers. Preflight requests are answered
// completely.
func (p *corsPolicy) apply(w http.ResponseWriter, r *http.Request) {
	p.c.HandlerFunc(w, r)
}

func sameOrigin(r *http.Request, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Host == r.Host
}
