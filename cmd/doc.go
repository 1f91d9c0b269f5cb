// Architecture overview:
//   - Refresher: internal/refresher runs one background loop ticking every schedule.tick. Each tick checks three
//     cadences: update (recount the OLIS listing, rebuild the missing-name list, notify on a new total), prune
//     (delete invalid testimony files older than the grace period), and regenerate (download new documents, merge
//     the valid PDFs with pdfunite, extract text with pdftotext, and rebuild the banner-joined text file).
//   - Fetch pipeline: the listing page is fetched with the Colly-based fetcher over a retrying transport; documents
//     are fetched with resty into the flat testimony directory. Files are validated lazily by their leading '%'.
//   - HTTP API: internal/api.Server serves the summary page and the JSON, PDF, and text artifacts from an atomically
//     swapped snapshot and from files replaced by rename, so readers never block the loop.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler; Pub/Sub carries tally-change events when a
//     topic is configured.
//
// Quick checklist:
//   - Install poppler-utils for pdfunite and pdftotext; text extraction falls back to a pure Go reader without them.
//   - Configure env vars: TESTIMONY_SERVER_PORT or PORT, TESTIMONY_SOURCE_BILL, TESTIMONY_SOURCE_SESSION,
//     TESTIMONY_SOURCE_COMPARE_BILL/SESSION (an empty bill disables the comparison), TESTIMONY_STORAGE_TESTIMONY_DIR,
//     TESTIMONY_SERVER_SOURCE_URL, TESTIMONY_PUBSUB_PROJECT_ID/TOPIC.
//   - Run locally: go run . serve --config config.yaml (or rely solely on env overrides).
package cmd
