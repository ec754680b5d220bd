//go:build cgo

package store

import (
	// cgo builds use the mattn driver for the native SQLite library.
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
