package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are checked after X-Forwarded-For, in order.
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// getClientIP returns the first public address found in the proxy headers or
// the connection. Private and loopback addresses are skipped; when nothing
// public is found the loopback address is returned.
func getClientIP(c *fiber.Ctx) string {
	if ip := selectPreferredIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}

	for _, header := range proxyHeaders {
		if value := c.Get(header); value != "" {
			if ip := selectPreferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
			return ip
		}
	}

	if ip := selectPreferredIP([]string{c.Context().RemoteAddr().String(), c.IP()}); ip != "" {
		return ip
	}

	return "127.0.0.1"
}

func isPrivateIP(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return false
	}
	return isPrivateAddr(addr.Unmap())
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
}

// selectPreferredIP returns the first public IPv4 address, else the first
// public IPv6 address, else "".
func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		addr, ok := parseAddr(raw)
		if !ok || isPrivateAddr(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if ipv6Fallback == "" {
			ipv6Fallback = addr.String()
		}
	}

	return ipv6Fallback
}

// normalizeIP cleans up an address as found in headers: quotes, ports,
// brackets, zones and IPv4-mapped IPv6 are all stripped.
func normalizeIP(raw string) (string, net.IP) {
	addr, ok := parseAddr(raw)
	if !ok {
		return "", nil
	}
	return addr.String(), net.IP(addr.AsSlice())
}

func parseAddr(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"")
	if clean == "" {
		return netip.Addr{}, false
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().WithZone("").Unmap(), true
	}

	clean = strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(clean); err == nil {
		return addr.WithZone("").Unmap(), true
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return parseAddr(host)
	}

	return netip.Addr{}, false
}

func parseForwardedHeader(header string) []string {
	var candidates []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				candidates = append(candidates, part[len("for="):])
			}
		}
	}
	return candidates
}

// generateETag creates a strong ETag from content
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}
