//go:build !sqlite_cgo

package storage

// This file is compiled by default. It uses a pure Go SQLite implementation,
// so no C compiler is required and cross-compilation works out of the box.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	"database/sql/driver"
	"fmt"

	"modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return casefold(v), nil
		case []byte:
			return casefold(string(v)), nil
		case nil:
			return nil, nil
		default:
			return nil, fmt.Errorf("%s: unsupported argument type %T", foldFunc, v)
		}
	})
}
