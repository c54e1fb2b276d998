package types

// Maybe marks a normalized value that may be unavailable in the provider payload.
type Maybe[T any] struct {
	value     T
	available bool
}

func Available[T any](v T) Maybe[T] {
	return Maybe[T]{value: v, available: true}
}

func Unavailable[T any]() Maybe[T] {
	return Maybe[T]{}
}

func (m Maybe[T]) Get() (T, bool) {
	return m.value, m.available
}

func (m Maybe[T]) IsAvailable() bool {
	return m.available
}

// OrElse returns the value, or def if unavailable.
func (m Maybe[T]) OrElse(def T) T {
	if !m.available {
		return def
	}
	return m.value
}

// ItemAt indexes into an available list. Out of range yields Unavailable.
func ItemAt[T any](m Maybe[[]T], i int) Maybe[T] {
	items, ok := m.Get()
	if !ok || i < 0 || i >= len(items) {
		return Unavailable[T]()
	}
	return Available(items[i])
}

// Count returns the length of an available list.
func Count[T any](m Maybe[[]T]) Maybe[int] {
	items, ok := m.Get()
	if !ok {
		return Unavailable[int]()
	}
	return Available(len(items))
}

// AvailableString marks empty strings as unavailable.
func AvailableString(s string) Maybe[string] {
	if s == "" {
		return Unavailable[string]()
	}
	return Available(s)
}

// AvailableList marks nil or empty lists as unavailable.
func AvailableList[T any](items []T) Maybe[[]T] {
	if len(items) == 0 {
		return Unavailable[[]T]()
	}
	return Available(items)
}
