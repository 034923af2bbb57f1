package checks

import (
	"context"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/pulsewatch/pulsewatch/internal/db"
)

// NoResponse is the message recorded when a ping target cannot be
// resolved or reached. An unreachable host is a normal failure
// outcome, not an error.
const NoResponse = "No response"

// Dialer lets tests stub the connect step.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// PingChecker probes reachability: the target hostname is resolved
// through DNS, then a TCP connect is attempted as the echo fallback
// (raw ICMP needs elevated privileges).
type PingChecker struct {
	resolver string // "host:port" of the DNS server
	dialer   Dialer
}

func NewPingChecker() *PingChecker {
	resolver := "8.8.8.8:53"
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
		resolver = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &PingChecker{
		resolver: resolver,
		dialer:   &net.Dialer{},
	}
}

func (p *PingChecker) Run(ctx context.Context, monitor *db.Monitor) *Result {
	result := &Result{}

	host, port := splitTarget(monitor.URL)

	start := time.Now()

	addr := host
	if net.ParseIP(host) == nil {
		ip, err := p.resolve(ctx, host)
		if err != nil {
			result.ResponseTimeMs = int(time.Since(start).Milliseconds())
			result.Message = NoResponse
			return result
		}
		addr = ip
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, port))
	result.ResponseTimeMs = int(time.Since(start).Milliseconds())
	if err != nil {
		result.Message = NoResponse
		return result
	}
	conn.Close()

	result.Success = true
	result.Message = "Success"
	return result
}

func (p *PingChecker) resolve(ctx context.Context, host string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	client := &dns.Client{}
	resp, _, err := client.ExchangeContext(ctx, m, p.resolver)
	if err != nil {
		return "", err
	}

	for _, ans := range resp.Answer {
		if a, ok := ans.(*dns.A); ok {
			return a.A.String(), nil
		}
	}
	return "", &net.DNSError{Err: "no A records", Name: host, IsNotFound: true}
}

// splitTarget accepts either a bare host ("example.com") or a URL and
// returns the host plus the port to connect to.
func splitTarget(target string) (host, port string) {
	port = "80"

	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Host != "" {
			host = u.Hostname()
			if p := u.Port(); p != "" {
				port = p
			} else if u.Scheme == "https" {
				port = "443"
			}
			return host, port
		}
	}

	if h, p, err := net.SplitHostPort(target); err == nil {
		return h, p
	}
	return target, port
}
