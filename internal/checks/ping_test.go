package checks

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/db"
)

type stubDialer struct {
	err   error
	addrs []string
}

func (d *stubDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.addrs = append(d.addrs, address)
	if d.err != nil {
		return nil, d.err
	}
	server, client := net.Pipe()
	go func() { _ = server.Close() }()
	return client, nil
}

func pingMonitor(target string) *db.Monitor {
	return &db.Monitor{ID: "m1", Type: db.MonitorTypePing, URL: target, IsActive: true}
}

func TestPingChecker_ReachableHost(t *testing.T) {
	dialer := &stubDialer{}
	checker := &PingChecker{resolver: "127.0.0.1:53", dialer: dialer}

	// IP target skips DNS resolution entirely.
	result := checker.Run(context.Background(), pingMonitor("127.0.0.1:8080"))

	if !result.Success {
		t.Fatalf("Success = false, message: %s", result.Message)
	}
	if result.Message != "Success" {
		t.Errorf("Message = %q, want %q", result.Message, "Success")
	}
	if len(dialer.addrs) != 1 || dialer.addrs[0] != "127.0.0.1:8080" {
		t.Errorf("dialed %v, want [127.0.0.1:8080]", dialer.addrs)
	}
}

func TestPingChecker_UnreachableHost(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	checker := &PingChecker{resolver: "127.0.0.1:53", dialer: dialer}

	result := checker.Run(context.Background(), pingMonitor("127.0.0.1"))

	if result.Success {
		t.Error("Success = true for refused connection, want false")
	}
	if result.Message != NoResponse {
		t.Errorf("Message = %q, want %q", result.Message, NoResponse)
	}
}

func TestPingChecker_ResolutionFailure(t *testing.T) {
	// Reserved TEST-NET address: resolution cannot succeed and fails
	// fast without leaving the host.
	checker := &PingChecker{resolver: "192.0.2.1:1", dialer: &stubDialer{}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	result := checker.Run(ctx, pingMonitor("no-such-host.invalid"))

	if result.Success {
		t.Error("Success = true for unresolvable host, want false")
	}
	if result.Message != NoResponse {
		t.Errorf("Message = %q, want %q", result.Message, NoResponse)
	}
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		target   string
		wantHost string
		wantPort string
	}{
		{"example.com", "example.com", "80"},
		{"example.com:8080", "example.com", "8080"},
		{"http://example.com", "example.com", "80"},
		{"https://example.com", "example.com", "443"},
		{"https://example.com:8443/path", "example.com", "8443"},
		{"10.0.0.1", "10.0.0.1", "80"},
		{"10.0.0.1:22", "10.0.0.1", "22"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			host, port := splitTarget(tt.target)
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("splitTarget(%q) = (%q, %q), want (%q, %q)",
					tt.target, host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}
