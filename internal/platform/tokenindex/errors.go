package tokenindex

import "fmt"

// InvalidFilterValue reports a filter the compiler cannot accept, such as a
// :missing value other than true or false.
type InvalidFilterValue struct {
	Code   string
	Value  string
	Reason string
}

func (e *InvalidFilterValue) Error() string {
	return fmt.Sprintf("invalid value %q for search parameter %q: %s", e.Value, e.Code, e.Reason)
}

// StoreFailure wraps a failed write to a token table.
type StoreFailure struct {
	Op           string
	ResourceType string
	Err          error
}

func (e *StoreFailure) Error() string {
	return fmt.Sprintf("token store: %s %s: %v", e.Op, e.ResourceType, e.Err)
}

func (e *StoreFailure) Unwrap() error { return e.Err }
