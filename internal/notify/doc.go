// Package notify implements best-effort delivery of verification codes and recovery tokens.
//
// Delivery runs on a small worker pool fed by a bounded queue, so a slow mail backend never
// delays or fails the account write that triggered it. Failures are logged with zap and
// counted; they are never returned.
//
// # What this package must NOT do
//
//   - Log the code or token carried by a job.
//   - Import fleetAuth or any sibling internal package.
package notify
