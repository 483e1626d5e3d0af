// Package health provides reusable connectivity checks, used by
// cmd/artemisd's peer probe that drives the gRPC health server.
//
// # Health Check Functions
//
//   - NetworkCheck: verify TCP connectivity to a host:port
//   - Combine: aggregate multiple checks into a single Result
//
// # Usage Example
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	etcdStatus := health.NetworkCheck(ctx, "etcd.internal", 2379)
//	redisStatus := health.NetworkCheck(ctx, "redis.internal", 6379)
//
//	overall := health.Combine(etcdStatus, redisStatus)
//	if overall.IsUnhealthy() {
//	    log.Printf("readiness check failed: %s", overall.Message)
//	}
//
// # Status Priority
//
// When combining checks with Combine(), the result follows this priority:
//
//   - Unhealthy: if any check is unhealthy, the combined result is unhealthy
//   - Degraded: if any check is degraded (and none unhealthy), the result is degraded
//   - Healthy: if all checks are healthy, the result is healthy
//
// # Context and Timeouts
//
// NetworkCheck accepts a context for timeout and cancellation control. If
// nil is passed, a default 5-second timeout is used.
package health
