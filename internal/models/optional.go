package models

// Optional distinguishes "not provided" from a provided value in patch requests.
// For pointer types a provided nil means "clear the field".
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a provided Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it was provided
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}
