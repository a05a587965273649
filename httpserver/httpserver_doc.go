/*
Package httpserver runs the credential service API.

It wraps the routes registered by api/handlers with access logging and adds the
operational endpoints:

  - GET /livez   - liveness check
  - GET /readyz  - readiness check; fails while draining or when a dependency check fails
  - GET /drain   - mark the server as not ready
  - GET /undrain - mark the server as ready again
  - /debug/...   - pprof, when enabled

Prometheus metrics are served by a separate listener on MetricsAddr.
*/
package httpserver
