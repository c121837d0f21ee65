package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:52111"
	assert.Equal(t, "192.0.2.10", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))

	// Cloudflare header wins over X-Forwarded-For.
	r.Header.Set("CF-Connecting-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", ClientIP(r))
}

func allowlistProbe(al *IPAllowlist, remoteAddr string) int {
	handler := al.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	r := httptest.NewRequest("GET", "/api/panel/login", nil)
	r.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w.Code
}

func TestIPAllowlistDisabledPassesAll(t *testing.T) {
	t.Setenv("IP_ALLOWLIST_ENABLED", "0")
	t.Setenv("ALLOWED_IPS", "")

	al := NewIPAllowlistFromEnv()
	assert.Equal(t, http.StatusOK, allowlistProbe(al, "192.0.2.10:1234"))
}

func TestIPAllowlistEnforced(t *testing.T) {
	t.Setenv("IP_ALLOWLIST_ENABLED", "1")
	t.Setenv("ALLOWED_IPS", "203.0.113.7, 198.51.100.0/24, not-an-ip")

	al := NewIPAllowlistFromEnv()

	assert.Equal(t, http.StatusOK, allowlistProbe(al, "203.0.113.7:9999"))
	assert.Equal(t, http.StatusOK, allowlistProbe(al, "198.51.100.42:9999"))
	assert.Equal(t, http.StatusForbidden, allowlistProbe(al, "192.0.2.10:9999"))
}

func TestIPAllowlistEnabledEmptyListBlocksAll(t *testing.T) {
	t.Setenv("IP_ALLOWLIST_ENABLED", "1")
	t.Setenv("ALLOWED_IPS", "")

	al := NewIPAllowlistFromEnv()
	require.Equal(t, http.StatusForbidden, allowlistProbe(al, "203.0.113.7:9999"))
}
