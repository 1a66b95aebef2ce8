// Package httpapi serves the manual trigger, status and metrics endpoints.
//
// Security:
//   - Prefer binding to localhost (default).
//   - If binding to a non-loopback address, set Token or enable AllowInsecure.
package httpapi
