package shared

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the remote host without its port.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
