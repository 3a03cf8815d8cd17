// Package password implements password hashing and verification with Argon2id defaults and
// bcrypt compatibility for hashes imported from earlier deployments.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] verifies argon2id and bcrypt ($2a$/$2b$/$2y$) hashes. [Hasher.NeedsUpgrade]
// returns true for bcrypt hashes and for argon2id hashes made with weaker parameters, so
// the caller can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other fleetAuth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
