// Package storage provides the SQLite persistence layer for guri.
//
// It owns:
//   - Users, goals, tasks and the append-only progress log
//   - The reminder state pair on each task (next fire time + dispatch token)
//   - The local dispatch queue's journal of pending deliveries
package storage
