// Package http provides the HTTP client used to fetch pages and probe
// site readiness.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts
//   - Redirect handling with a final-URL record
//   - Default headers, proxy and TLS verification settings
//   - Per-session cookie jars
package http
