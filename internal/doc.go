// Package internal contains helpers private to fleetAuth: verification code generation and
// the encoding of password recovery tokens.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - httpapi: JSON HTTP handlers used by cmd/fleetauthd
//   - ids: monotonic ULID record identifiers
//   - notify: bounded worker pool for notifier calls
//   - stores: Redis password recovery challenges
//
// # What this package must NOT do
//
//   - Export types that appear in the public fleetAuth API.
//   - Be imported by any package outside the fleetAuth module.
package internal
