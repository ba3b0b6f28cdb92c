package aspect

// Update replaces a value with one of the same type. Woven code uses it to
// shadow method parameters:
//
//	foo = doubler.Update(foo)
type Update[T any] interface {
	Update(T) T
}

// UpdateRef updates a value in place.
type UpdateRef[T any] interface {
	UpdateRef(*T)
}

// UpdateFunc adapts a function to Update
type UpdateFunc[T any] func(T) T

// Update calls f(v)
func (f UpdateFunc[T]) Update(v T) T { return f(v) }

// UpdateRefFunc adapts a function to UpdateRef
type UpdateRefFunc[T any] func(*T)

// UpdateRef calls f(v)
func (f UpdateRefFunc[T]) UpdateRef(v *T) { f(v) }

// FromRef adapts an UpdateRef into an Update: the value is copied, updated
// through its address, and the copy is returned. The caller's value is never
// touched.
func FromRef[T any](u UpdateRef[T]) Update[T] {
	return refUpdate[T]{ref: u}
}

type refUpdate[T any] struct {
	ref UpdateRef[T]
}

func (r refUpdate[T]) Update(v T) T {
	r.ref.UpdateRef(&v)
	return v
}
