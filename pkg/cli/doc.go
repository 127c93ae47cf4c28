// Package cli provides the eventlens command-line interface.
//
// # Overview
//
// This package implements the `eventlens` tool: one-shot commands that
// process, aggregate and funnel a file of raw event records, plus
// long-running commands that re-run a job definition when its files change
// or on a cron schedule.
//
// Records are read as a JSON array or as newline-delimited JSON. Results
// are written as indented JSON to stdout or, with -out, atomically to a file.
//
// # Commands
//
// process: Validate and transform raw records
//
//	eventlens process \
//		-input events.ndjson \
//		-config processing.yaml \
//		-strict
//
// aggregate: Compute the metrics of a job definition
//
//	eventlens aggregate -input events.ndjson -job checkout.yaml
//
// funnel: Compute conversion through ordered steps
//
//	eventlens funnel \
//		-input events.ndjson \
//		-steps view,add_to_cart,purchase \
//		-window 3600000
//
// run: Run a job definition once and write its report
//
//	eventlens run -job checkout.yaml -input events.ndjson -out report.json
//
// watch: Re-run a job when its definition or input changes
//
//	eventlens watch -job checkout.yaml -input events.ndjson -out report.json
//
// schedule: Run a job on a cron schedule, serving /health/live,
// /health/ready, the report API under /api/v1 and, when
// EVENTLENS_METRICS_ENABLED is set, /metrics
//
//	eventlens schedule \
//		-job checkout.yaml \
//		-input events.ndjson \
//		-out report.json \
//		-store sqlite:///var/lib/eventlens/reports.db \
//		-cron "*/15 * * * *"
//
// # Configuration
//
// Engine parallelism, the report cache, logging and telemetry are read from
// EVENTLENS_* environment variables (see the config package). Watch and
// schedule cache reports by the content of the job and input files, so a
// run over unchanged files reuses the previous report.
//
// Every command that runs a job also publishes its report to the store
// named by -store or EVENTLENS_REPORT_STORE (file://, sqlite://,
// postgres://, redis:// or s3:// URLs, comma separated to fan out).
//
// # Related Packages
//
//   - pkg/engine: Instrumented processing, aggregation and funnels
//   - pkg/job: Job definitions, record input and reports
//   - pkg/config: Environment configuration
//   - pkg/store: Report stores
//   - pkg/server: Report and health HTTP API
package cli
