// Package writer persists alerts received from elders.
//
// AlertWriter drains the router's alert buffer into batches and inserts them
// into the alerts table with pgx.Batch. Inserts are append-only and
// idempotent: a redelivered alert id is counted as a conflict and skipped.
package writer
