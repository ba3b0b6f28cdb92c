package aspect

import "fmt"

// Intercept evaluates expr under a, following the loop
//
//	repeat:
//	    enter := a.Enter()
//	    result := expr()
//	    if a.OnResult(enter, result) == Return { return result }
//
// expr is evaluated at least once and once more per Retry advice. There is no
// upper bound: an aspect that advises Retry must eventually advise Return, or
// the loop never ends. Use InterceptBounded when the caller wants to enforce a
// limit itself.
//
// A panic in expr is not intercepted and OnResult is not called for that
// attempt. See InterceptScoped.
func Intercept[E, R any](a OnResult[E, R], expr func() R) R {
	for {
		enter := a.Enter()
		result := expr()
		advice, result := Notify(a, enter, result)
		if advice == Return {
			return result
		}
	}
}

// InterceptMut is Intercept for aspects that may replace the result. The value
// returned to the caller is the one produced by the last OnResultMut call.
func InterceptMut[E, R any](a OnResultMut[E, R], expr func() R) R {
	for {
		enter := a.Enter()
		result := expr()
		advice, result := NotifyMut(a, enter, result)
		if advice == Return {
			return result
		}
	}
}

// InterceptErr wraps the common (T, error) shape. The aspect sees both values
// as a Pair.
func InterceptErr[E, T any](a OnResult[E, Pair[T, error]], expr func() (T, error)) (T, error) {
	return Intercept(a, func() Pair[T, error] {
		v, err := expr()
		return Of(v, err)
	}).Values()
}

// InterceptScoped behaves like Intercept, except that when expr exits without
// returning (a panic or runtime.Goexit) the aspect's LeaveScope is called with
// the context of that attempt before unwinding continues. The advice returned by
// LeaveScope cannot stop the panic.
func InterceptScoped[E, R any](a OnResult[E, R], expr func() R) R {
	for {
		enter := a.Enter()
		result := Scoped(a, enter, expr)
		advice, result := Notify(a, enter, result)
		if advice == Return {
			return result
		}
	}
}

// Scoped evaluates expr. When expr exits without returning, s.LeaveScope is
// called with enter before unwinding continues. Woven code calls it for
// aspects that must observe panics.
func Scoped[E, R any](s ScopeLeaver[E], enter E, expr func() R) R {
	returned := false
	defer func() {
		if !returned {
			s.LeaveScope(enter)
		}
	}()

	result := expr()
	returned = true
	return result
}

// ScopedOf is Scoped for expressions with two results
func ScopedOf[E, A, B any](s ScopeLeaver[E], enter E, expr func() (A, B)) Pair[A, B] {
	return Scoped(s, enter, func() Pair[A, B] {
		a, b := expr()
		return Of(a, b)
	})
}

// ExhaustedError is returned by InterceptBounded when every allowed attempt
// was answered with Retry.
type ExhaustedError struct {
	// Attempts is the number of evaluations performed.
	Attempts int
	// Last is the result of the final evaluation.
	Last any
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("aspect advised retry on all %d attempts", e.Attempts)
}

// Unwrap returns the last result when it is an error.
func (e *ExhaustedError) Unwrap() error {
	switch last := e.Last.(type) {
	case error:
		return last
	case interface{ Err() error }:
		return last.Err()
	}
	return nil
}

// InterceptBounded is Intercept with a caller-side limit. After maxAttempts
// evaluations that all advised Retry, it returns the last result together with
// an *ExhaustedError. A maxAttempts below one is treated as one.
func InterceptBounded[E, R any](a OnResult[E, R], maxAttempts int, expr func() R) (R, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var result R
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		enter := a.Enter()
		result = expr()
		var advice Advice
		advice, result = Notify(a, enter, result)
		if advice == Return {
			return result, nil
		}
	}

	return result, &ExhaustedError{Attempts: maxAttempts, Last: result}
}
