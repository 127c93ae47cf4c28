// Package store publishes job reports to durable backends and reads them
// back.
//
// # Overview
//
// Every backend implements Store: Save a report as the latest for its job,
// read the Latest report, or List recent runs newest first. Each backend
// keeps a bounded history per job (Options.History).
//
// Supported backends:
//   - FileStore: JSON files on local disk
//   - SQLStore: PostgreSQL (lib/pq) or SQLite (go-sqlite3)
//   - RedisStore: latest key plus a trimmed list
//   - S3Store: objects in S3 or an S3-compatible service such as MinIO
//   - MultiStore: fan-out to several backends
//
// # Usage Example
//
//	s, err := store.Open(ctx, "sqlite:///var/lib/eventlens/reports.db", store.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	if err := s.Save(ctx, report); err != nil {
//		return err
//	}
//	latest, err := s.Latest(ctx, "checkout")
//
// Job names are reduced to [A-Za-z0-9._-]; an unnamed job is stored as
// "default".
//
// # Related Packages
//
//   - pkg/job: The Report type
//   - pkg/server: HTTP API over a Store
package store
