//go:build purego

package storage

import _ "modernc.org/sqlite"

const driverName = "sqlite"

// modernc takes pragmas as repeated _pragma parameters.
func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
