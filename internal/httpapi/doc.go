// Package httpapi exposes a fleetAuth engine over JSON HTTP for the fleetauthd daemon.
//
// Routes live under /api/auth. Administrative routes under /api/admin are registered only
// when an admin token is configured, and require it in the X-Admin-Token header.
package httpapi
