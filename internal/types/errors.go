package types

import "fmt"

// MatchDecodeError wraps corruption found while decoding a stored match
// entry, so callers can tell a broken record apart from a missing one
// and report the affected height.
type MatchDecodeError struct {
	Height uint64
	Err    error
}

func (e MatchDecodeError) Error() string {
	return fmt.Sprintf("corrupt match entry at height %d: %v", e.Height, e.Err)
}

func (e MatchDecodeError) Unwrap() error { return e.Err }
