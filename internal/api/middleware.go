package api

import (
	"log"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
	"time"
)

// Logger logs each request with method, path, status and duration.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// CORS allows cross-origin reads of the public API.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IPAllowlist restricts the wrapped routes to a fixed set of networks.
// Configured via env:
//
//	IP_ALLOWLIST_ENABLED=1|0
//	ALLOWED_IPS=203.0.113.7,2001:db8::/32
//
// Behind Cloudflare the real client address arrives in CF-Connecting-IP;
// X-Forwarded-For covers other proxies. Disabled (or with an empty list) it
// passes everything through.
type IPAllowlist struct {
	enabled bool
	allowed []netip.Prefix
}

// NewIPAllowlistFromEnv builds the allowlist from environment variables.
func NewIPAllowlistFromEnv() *IPAllowlist {
	al := &IPAllowlist{
		enabled: os.Getenv("IP_ALLOWLIST_ENABLED") == "1",
	}
	for _, raw := range strings.Split(os.Getenv("ALLOWED_IPS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			al.allowed = append(al.allowed, p)
			continue
		}
		if a, err := netip.ParseAddr(raw); err == nil {
			al.allowed = append(al.allowed, netip.PrefixFrom(a, a.BitLen()))
		} else {
			log.Printf("ignoring invalid ALLOWED_IPS entry %q", raw)
		}
	}
	return al
}

// Middleware rejects requests from addresses outside the allowlist.
func (al *IPAllowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if al.enabled && !al.allows(ClientIP(r)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (al *IPAllowlist) allows(ipStr string) bool {
	if len(al.allowed) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range al.allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP extracts the real client address, preferring the Cloudflare
// header, then the first X-Forwarded-For hop, then the socket address.
func ClientIP(r *http.Request) string {
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.Index(xff, ","); i >= 0 {
			xff = xff[:i]
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
