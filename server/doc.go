// Package server exposes the standardization service as a JSON HTTP
// API on gin. Validation failures map to 400 responses, everything
// else to 500; degraded results are reported in the body, not as
// errors.
package server
