// Package security holds the response headers and request screening applied
// in front of the API.
package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

const maxURLLength = 2048

var suspiciousPatterns = []string{
	"../", "..\\", ".env", ".git", "wp-admin", "phpmyadmin",
	"<script", "javascript:", "union select", "etc/passwd",
}

var scannerAgents = []string{"sqlmap", "nikto", "nmap", "gobuster", "dirb"}

type DetectionMetrics struct {
	SuspiciousRequests int64 `json:"suspicious_requests"`
	BlockedRequests    int64 `json:"blocked_requests"`
}

// Detector flags requests that look like probes and resolves the client IP
// behind trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	blocked        atomic.Int64
	trustedProxies []*net.IPNet
}

func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports whether the path, query or user agent
// matches a known probe pattern, or the method or URL length is abnormal.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	query, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		query = r.URL.RawQuery
	}

	suspicious := containsAny(strings.ToLower(r.URL.Path), suspiciousPatterns) ||
		containsAny(strings.ToLower(query), suspiciousPatterns) ||
		containsAny(strings.ToLower(r.Header.Get("User-Agent")), scannerAgents) ||
		r.Method == http.MethodTrace || r.Method == http.MethodConnect ||
		len(r.URL.String()) > maxURLLength

	if suspicious {
		d.suspicious.Add(1)
	}
	return suspicious
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Middleware rejects suspicious requests with 400 before they reach a handler.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			d.blocked.Add(1)
			slog.WarnContext(r.Context(), "Suspicious request blocked",
				"component", "security",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", d.ExtractClientIP(r),
				"user_agent", r.Header.Get("User-Agent"))
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the direct peer address, or the forwarded client
// address when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		BlockedRequests:    d.blocked.Load(),
	}
}
