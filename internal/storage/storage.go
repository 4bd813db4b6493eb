package storage

import "fmt"

// PersistError marks a failure to write an output artifact. The stage
// result is still returned in memory so the caller can retry the write.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
