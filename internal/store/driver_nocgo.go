//go:build !cgo

package store

import (
	// Pure-Go builds fall back to the modernc driver; no C toolchain needed.
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"
