// Package stores provides the Redis-backed, short-lived challenge store used by password
// recovery.
//
// # Design
//
// Each challenge is a versioned, binary-encoded record with a TTL. Consume uses WATCH/MULTI
// optimistic transactions with automatic retry on contention. Records are single-use:
// deleted on success, and deleted once the attempt limit is reached. Secret comparisons
// use constant-time compare.
//
// # What this package must NOT do
//
//   - Import fleetAuth or any sibling internal package.
//   - Log or expose plaintext secrets.
//   - Use non-constant-time comparisons for secret matching.
package stores
