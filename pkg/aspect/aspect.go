// Package aspect provides the runtime half of the aspect toolkit: the pointcut
// protocol implemented by aspects and the intercept-and-retry loop that drives
// them.
//
// An aspect observes one evaluation of an expression. Before the expression
// runs, Enter produces a context value; after it returns, OnResult (or
// OnResultMut) receives that context and the result and decides whether the
// result is returned or the expression is evaluated again.
//
// Woven code produced by cmd/aspectgen calls into this package, but the
// functions here are also meant to be used by hand:
//
//	n := aspect.Intercept(&hits, func() int { return compute() })
package aspect

// Advice describes what the intercept loop does once an aspect has seen a result.
type Advice int

const (
	// Return yields the result to the caller.
	Return Advice = iota

	// Retry discards the result and evaluates the expression again.
	//
	// Nothing in this package bounds retries. An aspect that advises Retry owns
	// the bound, usually through a counter it keeps itself. Use with care when
	// the wrapped expression has side effects.
	Retry
)

// String returns the string representation of the advice
func (a Advice) String() string {
	switch a {
	case Return:
		return "return"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// Enter is called when entering an aspect, before the wrapped expression runs.
//
// The returned value is carried to the exit hook of the same attempt. Enter is
// called again on every retry, so it must be cheap and repeatable: read a
// clock, bump a counter, or return struct{}{} when nothing is needed.
type Enter[E any] interface {
	Enter() E
}

// ScopeLeaver is notified when an expression has exited but its result is not
// known, for instance because it panicked.
type ScopeLeaver[E any] interface {
	LeaveScope(enter E) Advice
}

// OnResult is implemented by aspects that observe the result of an expression
// without altering it. Use OnResultMut to replace the result.
type OnResult[E, R any] interface {
	Enter[E]
	ScopeLeaver[E]
	OnResult(enter E, result R) Advice
}

// OnResultMut is implemented by aspects that may replace the result of an
// expression before the caller sees it.
type OnResultMut[E, R any] interface {
	Enter[E]
	ScopeLeaver[E]
	OnResultMut(enter E, result R) (Advice, R)
}

// ReturnOnLeave can be embedded by aspects that have nothing to do when a scope
// is left without a result.
type ReturnOnLeave[E any] struct{}

// LeaveScope always returns Return
func (ReturnOnLeave[E]) LeaveScope(E) Advice { return Return }

// Leave is the default OnResult behaviour: the result is ignored and the
// decision is delegated to LeaveScope.
func Leave[E any](s ScopeLeaver[E], enter E) Advice {
	return s.LeaveScope(enter)
}

// Mutating adapts a read-only aspect into one that satisfies OnResultMut. The
// result is passed through unchanged; only the advice comes from a.
func Mutating[E, R any](a OnResult[E, R]) OnResultMut[E, R] {
	return mutating[E, R]{inner: a}
}

type mutating[E, R any] struct {
	inner OnResult[E, R]
}

func (m mutating[E, R]) Enter() E { return m.inner.Enter() }

func (m mutating[E, R]) LeaveScope(enter E) Advice { return m.inner.LeaveScope(enter) }

func (m mutating[E, R]) OnResultMut(enter E, result R) (Advice, R) {
	return m.inner.OnResult(enter, result), result
}

// Notify is the read-only exit notification. It has the same shape as NotifyMut
// so that generated expansions can be bound to either one by name.
func Notify[E, R any](a OnResult[E, R], enter E, result R) (Advice, R) {
	return a.OnResult(enter, result), result
}

// NotifyMut is the result-replacing exit notification.
func NotifyMut[E, R any](a OnResultMut[E, R], enter E, result R) (Advice, R) {
	return a.OnResultMut(enter, result)
}

// Pair carries the two results of a function such as func() (T, error) through
// a single type parameter.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Of builds a Pair, mostly useful for wrapping a two-valued call expression.
func Of[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{First: a, Second: b}
}

// Values unpacks the pair
func (p Pair[A, B]) Values() (A, B) {
	return p.First, p.Second
}

// Err returns the second value when it is a non-nil error.
func (p Pair[A, B]) Err() error {
	if err, ok := any(p.Second).(error); ok {
		return err
	}
	return nil
}
