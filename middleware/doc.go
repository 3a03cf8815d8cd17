// Package middleware exposes net/http adapters that authenticate bearer tokens through
// fleetAuth.Engine.
//
// # Guards
//
//   - [Guard] resolves the bearer token to a [fleetAuth.Principal] and stores it in the
//     request context.
//   - [RequireKind] additionally restricts a route to tenant (COMPANY) or machine (API)
//     principals.
//
// Token rejections answer 401 and store faults answer 503.
//
// This package never parses tokens itself; every decision is delegated to
// Engine.Authenticate.
package middleware
