package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds the response headers applied to every API response.
type HeadersConfig struct {
	CSP string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CrossOriginResource string
	// CacheControl keeps per-user JSON out of shared caches.
	CacheControl string
}

// DefaultHeadersConfig returns defaults for a JSON API that serves no
// documents.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP:                   "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		XFrameOptions:         "DENY",
		XContentTypeOptions:   "nosniff",
		ReferrerPolicy:        "no-referrer",
		CrossOriginResource:   "same-origin",
		CacheControl:          "no-store",
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	setIf(headers, "X-Content-Type-Options", h.config.XContentTypeOptions)
	setIf(headers, "X-Frame-Options", h.config.XFrameOptions)
	setIf(headers, "Content-Security-Policy", h.config.CSP)
	setIf(headers, "Referrer-Policy", h.config.ReferrerPolicy)
	setIf(headers, "Cross-Origin-Resource-Policy", h.config.CrossOriginResource)
	setIf(headers, "Cache-Control", h.config.CacheControl)

	// HSTS only means something over TLS.
	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		headers.Set("Strict-Transport-Security", hsts)
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}
