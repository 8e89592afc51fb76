package domain

// Field is a partial-update slot. The zero value is absent; a present
// field either carries a value or clears the stored one.
type Field[T any] struct {
	Present bool
	Value   *T
}

// Set returns a present field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{Present: true, Value: &v}
}

// Clear returns a present field that clears the stored value.
func Clear[T any]() Field[T] {
	return Field[T]{Present: true}
}

// Cleared reports whether the field is present without a value.
func (f Field[T]) Cleared() bool {
	return f.Present && f.Value == nil
}

// Get returns the carried value and whether there was one.
func (f Field[T]) Get() (T, bool) {
	if f.Value == nil {
		var zero T
		return zero, false
	}
	return *f.Value, true
}
