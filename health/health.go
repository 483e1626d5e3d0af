// Package health provides TCP connectivity checks. cmd/artemisd uses
// them to probe healthy cluster peers and set the gRPC health server's
// serving status. Adapted from the teacher SDK's health package, trimmed to
// the network-facing checks a registry node needs — BinaryCheck,
// BinaryVersionCheck, and FileCheck targeted local-process dependencies
// that do not apply to a clustered service.
package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Status classifies the outcome of a single check.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

// Result is the outcome of one health check.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
}

// IsUnhealthy reports whether the check failed outright.
func (r Result) IsUnhealthy() bool { return r.Status == StatusUnhealthy }

func healthy(msg string) Result              { return Result{Status: StatusHealthy, Message: msg} }
func unhealthy(msg string, d map[string]any) Result { return Result{Status: StatusUnhealthy, Message: msg, Details: d} }

const defaultDialTimeout = 5 * time.Second

// NetworkCheck dials host:port over TCP and reports whether the
// connection succeeded. A nil ctx gets a defaultDialTimeout deadline;
// a caller-supplied ctx is used as-is, including any deadline it
// already carries. Used to probe peer nodes.
func NetworkCheck(ctx context.Context, host string, port int) Result {
	address, err := dialAddress(host, port)
	if err != nil {
		return unhealthy(err.Error(), map[string]any{"host": host, "port": port})
	}

	dialCtx, cancel := withDefaultTimeout(ctx, defaultDialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return unhealthy("dial failed", map[string]any{
			"address": address, "error": err.Error(),
		})
	}
	conn.Close()
	return healthy("tcp connect ok: " + address)
}

func dialAddress(host string, port int) (string, error) {
	if host == "" {
		return "", fmt.Errorf("host cannot be empty")
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port number: %d", port)
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// withDefaultTimeout returns ctx unchanged (with a no-op cancel) if it
// is non-nil, otherwise a fresh context.Background() bounded by d.
func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx != nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.Background(), d)
}

// byStatus buckets a set of results by outcome, for Combine's
// worst-wins rollup.
type byStatus struct {
	unhealthy []string
	degraded  []string
	healthy   int
}

func bucket(checks []Result) byStatus {
	var b byStatus
	for _, c := range checks {
		msg := c.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch c.Status {
		case StatusUnhealthy:
			b.unhealthy = append(b.unhealthy, msg)
		case StatusDegraded:
			b.degraded = append(b.degraded, msg)
		default:
			b.healthy++
		}
	}
	return b
}

// Combine rolls up a batch of checks into one Result. Any unhealthy
// check makes the whole batch unhealthy; otherwise any degraded check
// makes it degraded; only an all-healthy batch reports healthy.
func Combine(checks ...Result) Result {
	if len(checks) == 0 {
		return healthy("no checks provided")
	}

	b := bucket(checks)
	base := map[string]any{"total": len(checks), "healthy": b.healthy}

	if n := len(b.unhealthy); n > 0 {
		base["unhealthy"] = n
		base["degraded"] = len(b.degraded)
		base["failed_checks"] = b.unhealthy
		return Result{Status: StatusUnhealthy, Message: fmt.Sprintf("%d check(s) failed", n), Details: base}
	}
	if n := len(b.degraded); n > 0 {
		base["degraded"] = n
		base["degraded_checks"] = b.degraded
		return Result{Status: StatusDegraded, Message: fmt.Sprintf("%d check(s) degraded", n), Details: base}
	}
	return healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
