// Package database provides PostgreSQL persistence for the guardian daemon.
//
// Tables:
//   - elders: cached registry of paired elders, replaced wholesale on save
//   - alerts: append-only log of alert events received from elders
//
// Persistence is optional; the daemon runs without a database when none is configured.
package database
