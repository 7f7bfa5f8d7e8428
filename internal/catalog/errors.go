package catalog

import "fmt"

// Op names a catalog operation in a StoreError.
type Op string

const (
	OpOpen  Op = "open"
	OpSeed  Op = "seed"
	OpList  Op = "list"
	OpCount Op = "count"
	OpRead  Op = "read seed file"
	OpWrite Op = "write seed file"
	OpScan  Op = "scan"
)

// StoreError reports a catalog I/O failure.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
