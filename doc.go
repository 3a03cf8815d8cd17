// Package fleetAuth provides the account authentication and lockout engine of the fleet
// backend: tenant ("company") account registration, code-based email verification with
// bounded retries, password login with progressive temporary lockout, machine ("API")
// credentials, and signed bearer tokens that resolve into a typed [Principal].
//
// Engine methods are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// fleetAuth is the public surface. It exposes [Engine], [Builder], [Config], the account
// records, and the collaborator interfaces the engine consumes ([AccountStore],
// [CompanyProvisioner], [Notifier], [CodeGenerator], [PasswordHasher]). Storage backends live
// under store/, token signing under jwt/, hashing under password/. Audit and notification
// dispatch live under internal/ and are never exported.
//
// # Concurrency contract
//
// The engine never serializes access to a record itself. Every counter mutation goes
// through [AccountStore.UpdateTenant], which must apply the mutator atomically with respect
// to other mutations of the same record. Fail-fast checks run on a plain read and are
// repeated inside the mutator, so two concurrent failed logins can never both observe
// loginAttempts=2 and miss each other's lock.
//
// # What this package must NOT do
//
//   - Return notification failures to the caller. Delivery is best-effort and logged.
//   - Distinguish token failure causes to the bearer. Every rejection is [ErrInvalidToken].
//   - Expose the account id from Register.
package fleetAuth
