package tracking

import (
	"net/http"
	"net/netip"
	"strings"
)

// remoteAddr resolves the originating client address. The first hop of
// X-Forwarded-For wins when a proxy chain is present, otherwise the
// socket address is used. Ports and IPv6 brackets are stripped and the
// candidate validated as an IP; unparseable values are stored verbatim.
func remoteAddr(r *http.Request) string {
	addr := r.Header.Get("X-Forwarded-For")
	if addr != "" {
		addr = strings.TrimSpace(strings.Split(addr, ",")[0])
	} else {
		addr = strings.TrimSpace(strings.Split(r.RemoteAddr, ",")[0])
	}

	// Try the bracketed-IPv6 form first, then host:port
	candidates := [2]string{
		strings.SplitN(strings.TrimPrefix(addr, "["), "]", 2)[0],
		strings.SplitN(addr, ":", 2)[0],
	}

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if ip, err := netip.ParseAddr(candidate); err == nil {
			return ip.String()
		}
	}

	return addr
}
