package httpmiddleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// Origins allowed to call the API. Empty or "*" allows any origin.
	Origins []string
	// Methods allowed in preflight responses. Defaults to GET, POST, OPTIONS.
	Methods []string
	// Headers allowed in preflight responses. When empty the requested
	// headers are echoed.
	Headers []string
	// ExposeHeaders are readable by the browser.
	ExposeHeaders []string
	// AllowCredentials permits cookies and auth headers. A wildcard origin is
	// then answered with the request's own origin.
	AllowCredentials bool
	// MaxAge is how long a preflight may be cached. Zero omits the header.
	MaxAge time.Duration
}

type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]string // lowercased -> configured
	credentials bool
	methods     string
	headers     string
	expose      string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	p := corsPolicy{
		anyOrigin:   len(cfg.Origins) == 0 || slices.Contains(cfg.Origins, "*"),
		origins:     make(map[string]string, len(cfg.Origins)),
		credentials: cfg.AllowCredentials,
		methods:     "GET, POST, OPTIONS",
		headers:     strings.Join(cfg.Headers, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
	}
	for _, o := range cfg.Origins {
		p.origins[strings.ToLower(o)] = o
	}
	if len(cfg.Methods) > 0 {
		p.methods = strings.Join(cfg.Methods, ", ")
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when it is not allowed.
func (p corsPolicy) allowOrigin(origin string) string {
	switch {
	case p.anyOrigin && p.credentials:
		return origin
	case p.anyOrigin:
		return "*"
	default:
		return p.origins[strings.ToLower(origin)]
	}
}

// CORS answers preflight requests and adds CORS headers to actual requests.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	varyOrigin := !p.anyOrigin || p.credentials

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if varyOrigin {
				h.Add("Vary", "Origin")
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed := p.allowOrigin(origin)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					p.writeCommon(h, allowed)
					h.Set("Access-Control-Allow-Methods", p.methods)
					switch {
					case p.headers != "":
						h.Set("Access-Control-Allow-Headers", p.headers)
					case r.Header.Get("Access-Control-Request-Headers") != "":
						h.Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				p.writeCommon(h, allowed)
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p corsPolicy) writeCommon(h http.Header, allowed string) {
	h.Set("Access-Control-Allow-Origin", allowed)
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}
