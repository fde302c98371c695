// Package api hosts the HTTP ingress for conversion jobs. Notable routes:
//   - POST /upload accepts a {url, folder, uuid} job and answers in plain text.
//   - GET / serves a static placeholder page.
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus scraping.
package api
