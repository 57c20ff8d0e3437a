// Package transport holds environment-level transport policy, kept out of
// the session logic so tests can run against plain HTTP.
package transport

import (
	"net"
	"net/url"
	"strings"
)

// Policy decides how a configured service URL must be adjusted before use.
type Policy interface {
	// Apply returns the base URL the client should actually dial.
	Apply(baseURL string) string
}

// Insecure leaves URLs untouched. It is the policy used in tests and against
// local simulators.
type Insecure struct{}

func (Insecure) Apply(baseURL string) string { return baseURL }

// ForceHTTPS upgrades http URLs to https, except for loopback hosts which
// stay as configured.
type ForceHTTPS struct{}

func (ForceHTTPS) Apply(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme != "http" {
		return baseURL
	}
	if isLoopback(u.Hostname()) {
		return baseURL
	}
	u.Scheme = "https"
	return u.String()
}

// FromConfig maps the FORCE_HTTPS setting onto a policy.
func FromConfig(forceHTTPS bool) Policy {
	if forceHTTPS {
		return ForceHTTPS{}
	}
	return Insecure{}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
