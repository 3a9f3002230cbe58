// Package origindefense restricts the origin to trusted front proxies. When
// the site runs behind a CDN only the CDN ranges and a few debugging
// addresses may reach it directly; everything else gets 403.
//
// The package does not depend on the rest of the module.
package origindefense

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Middleware is safe for concurrent use; the CIDR set may be replaced by
// the list poller while requests are served.
type Middleware struct {
	l            *slog.Logger
	enabled      bool
	allowIPs     map[string]struct{}
	allowCIDRs   []*net.IPNet
	realIPHeader string
	mu           sync.RWMutex
}

// Options configure a Middleware.
type Options struct {
	Enabled bool
	IPs     []string
	CIDRs   []string
	// AllowLocal admits 127.0.0.1 and ::1.
	AllowLocal bool
	// RealIPHeader names a header set by the proxy; its first valid address
	// wins over RemoteAddr.
	RealIPHeader string
}

func New(l *slog.Logger, o Options) *Middleware {
	m := &Middleware{
		l:            l,
		enabled:      o.Enabled,
		allowIPs:     map[string]struct{}{},
		realIPHeader: strings.TrimSpace(o.RealIPHeader),
	}
	ips := o.IPs
	if o.AllowLocal {
		ips = append(ips, "127.0.0.1", "::1")
	}
	for _, p := range ips {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			m.allowIPs[ip.String()] = struct{}{}
		}
	}
	for _, c := range o.CIDRs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			m.allowCIDRs = append(m.allowCIDRs, n)
		}
	}
	return m
}

// NewFromEnv reads:
//
//	ORIGIN_DEFENSE_ENABLE=true            enable the guard
//	ORIGIN_ALLOW_IPS=1.2.3.4,5.6.7.8      single addresses
//	ORIGIN_ALLOW_CIDRS=10.0.0.0/8,...     ranges, v4 or v6
//	ORIGIN_ALLOW_LOCAL=true               loopback for local development
//	ORIGIN_REAL_IP_HEADER=CF-Connecting-IP
//	ORIGIN_CIDRS_URL=https://...          plain-text range list to poll
//	ORIGIN_CIDRS_POLL_SECONDS=86400       poll period
//
// The poller stops with ctx.
func NewFromEnv(ctx context.Context, l *slog.Logger) *Middleware {
	m := New(l, Options{
		Enabled:      os.Getenv("ORIGIN_DEFENSE_ENABLE") == "true",
		IPs:          splitList(os.Getenv("ORIGIN_ALLOW_IPS")),
		CIDRs:        splitList(os.Getenv("ORIGIN_ALLOW_CIDRS")),
		AllowLocal:   os.Getenv("ORIGIN_ALLOW_LOCAL") == "true",
		RealIPHeader: os.Getenv("ORIGIN_REAL_IP_HEADER"),
	})
	if u := os.Getenv("ORIGIN_CIDRS_URL"); m.enabled && u != "" {
		period := 86400
		if n, err := strconv.Atoi(os.Getenv("ORIGIN_CIDRS_POLL_SECONDS")); err == nil && n > 0 {
			period = n
		}
		go m.Poll(ctx, &http.Client{Timeout: 10 * time.Second}, u, time.Duration(period)*time.Second)
	}
	return m
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Enabled reports whether only allowlisted peers reach the handler.
func (m *Middleware) Enabled() bool { return m.enabled }

// Wrap returns next unchanged when the guard is disabled.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.extractIP(r)
		if ip == nil {
			m.l.Debug("origin_defense_block", "reason", "no_ip")
			write403(w)
			return
		}
		if !m.Allowed(ip) {
			m.l.Debug("origin_defense_block", "ip", ip.String())
			write403(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether ip is in the allow set.
func (m *Middleware) Allowed(ip net.IP) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.allowIPs[ip.String()]; ok {
		return true
	}
	for _, n := range m.allowCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AddCIDRs merges ranges into the allow set.
func (m *Middleware) AddCIDRs(add []*net.IPNet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCIDRs = mergeCIDRs(m.allowCIDRs, add)
}

func (m *Middleware) extractIP(r *http.Request) net.IP {
	if m.realIPHeader != "" {
		if raw := r.Header.Get(m.realIPHeader); raw != "" {
			first := strings.TrimSpace(strings.Split(raw, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func write403(w http.ResponseWriter) {
	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<!doctype html><html lang="fr"><meta charset="utf-8"><title>403</title><p>Accès refusé.</p></html>`))
}

// mergeCIDRs deduplicates by network string.
func mergeCIDRs(old, add []*net.IPNet) []*net.IPNet {
	seen := map[string]struct{}{}
	out := make([]*net.IPNet, 0, len(old)+len(add))
	for _, n := range append(old, add...) {
		k := n.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out
}
