package health

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestNetworkCheck(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	testPort := addr.Port

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	tests := []struct {
		name          string
		host          string
		port          int
		timeout       time.Duration
		expectHealthy bool
	}{
		{
			name:          "successful connection to test server",
			host:          "127.0.0.1",
			port:          testPort,
			timeout:       2 * time.Second,
			expectHealthy: true,
		},
		{
			name:          "connection to non-existent port",
			host:          "127.0.0.1",
			port:          65000,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "invalid port number negative",
			host:          "127.0.0.1",
			port:          -1,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "invalid port number too large",
			host:          "127.0.0.1",
			port:          70000,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "empty host",
			host:          "",
			port:          80,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			result := NetworkCheck(ctx, tt.host, tt.port)

			if tt.expectHealthy && result.IsUnhealthy() {
				t.Errorf("expected healthy result, got unhealthy: %s", result.Message)
			}
			if !tt.expectHealthy && !result.IsUnhealthy() {
				t.Errorf("expected unhealthy result, got %v: %s", result.Status, result.Message)
			}
			if result.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestNetworkCheckWithNilContext(t *testing.T) {
	result := NetworkCheck(nil, "127.0.0.1", 65000)
	if !result.IsUnhealthy() {
		t.Error("expected unhealthy result for unreachable port")
	}
}

func TestNetworkCheckTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result := NetworkCheck(ctx, "10.255.255.1", 80)
	if !result.IsUnhealthy() {
		t.Error("expected unhealthy result for timed out connection")
	}
	if result.Message == "" {
		t.Error("expected non-empty message")
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name         string
		checks       []Result
		expectStatus Status
	}{
		{
			name: "all healthy",
			checks: []Result{
				healthy("check 1"),
				healthy("check 2"),
				healthy("check 3"),
			},
			expectStatus: StatusHealthy,
		},
		{
			name: "one unhealthy",
			checks: []Result{
				healthy("check 1"),
				unhealthy("check 2 failed", nil),
				healthy("check 3"),
			},
			expectStatus: StatusUnhealthy,
		},
		{
			name: "one degraded",
			checks: []Result{
				healthy("check 1"),
				{Status: StatusDegraded, Message: "check 2 degraded"},
				healthy("check 3"),
			},
			expectStatus: StatusDegraded,
		},
		{
			name: "unhealthy and degraded",
			checks: []Result{
				healthy("check 1"),
				{Status: StatusDegraded, Message: "check 2 degraded"},
				unhealthy("check 3 failed", nil),
			},
			expectStatus: StatusUnhealthy,
		},
		{
			name:         "no checks",
			checks:       nil,
			expectStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Combine(tt.checks...)
			if result.Status != tt.expectStatus {
				t.Errorf("expected status %v, got %v: %s", tt.expectStatus, result.Status, result.Message)
			}
			if result.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func BenchmarkNetworkCheck(b *testing.B) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatalf("failed to start test server: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	port := addr.Port

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NetworkCheck(ctx, "127.0.0.1", port)
	}
}
