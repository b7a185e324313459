package tracking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"plain v4", "127.0.0.9", "", "127.0.0.9"},
		{"v4 list", "127.0.0.9, 128.1.1.9", "", "127.0.0.9"},
		{"v4 with port", "127.0.0.9: 4090", "", "127.0.0.9"},
		{"v6", "2001:db8:85a3::8a2e:370:7734", "", "2001:db8:85a3::8a2e:370:7734"},
		{"v6 loopback", "::1", "", "::1"},
		{"bracketed v6 with port", "[2001:db8:85a3::8a2e:370:7734]: 4090", "", "2001:db8:85a3::8a2e:370:7734"},
		{"forwarded wins", "127.0.0.1:1234", "127.0.0.8", "127.0.0.8"},
		{"forwarded list takes first hop", "127.0.0.1:1234", "127.0.0.8, 127.0.0.9, 127.0.0.10", "127.0.0.8"},
		{"unparseable stored verbatim", "not-an-ip", "", "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/logging", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			assert.Equal(t, tt.want, remoteAddr(req))
		})
	}
}
