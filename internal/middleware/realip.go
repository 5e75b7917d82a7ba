package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ParseTrustedProxies turns CIDRs or bare IPs into networks. Empty entries are
// skipped.
func ParseTrustedProxies(specs []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, s := range specs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: not an IP or CIDR", s)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// TrustedRealIP rewrites RemoteAddr from X-Forwarded-For, but only when the
// socket peer is inside one of the trusted networks. The client is the
// rightmost hop that is not itself a trusted proxy. With no trusted networks
// the forwarding headers are ignored and ClientKey sees the socket peer.
func TrustedRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedClient(r, trusted); ip != nil {
				r.RemoteAddr = net.JoinHostPort(ip.String(), "0")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient returns the client named by X-Forwarded-For, or nil when
// the headers must not be honored for r.
func forwardedClient(r *http.Request, trusted []*net.IPNet) net.IP {
	if len(trusted) == 0 {
		return nil
	}
	peer := net.ParseIP(ClientKey(r))
	if peer == nil || !isTrusted(peer, trusted) {
		return nil
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}

	var last net.IP
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			// Anything left of a malformed hop was written by the client.
			break
		}
		if !isTrusted(ip, trusted) {
			return ip
		}
		last = ip
	}
	return last
}
