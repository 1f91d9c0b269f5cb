// Package api hosts the public HTTP interface. Notable routes:
//   - GET / for the human-readable summary page.
//   - GET /testimony.json, /testimony.pdf, /testimony.txt, /missing.txt for the data.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
