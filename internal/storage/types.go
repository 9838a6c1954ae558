package storage

import "time"

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (the default and only driver)
//
// If Driver is empty, "sqlite" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}
