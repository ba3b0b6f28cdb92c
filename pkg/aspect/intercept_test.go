package aspect

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// retrying advises Retry a fixed number of times, then Return.
type retrying[R any] struct {
	ReturnOnLeave[int]
	remaining int
	enters    int
	seen      []R
}

func (r *retrying[R]) Enter() int {
	r.enters++
	return r.enters
}

func (r *retrying[R]) OnResult(_ int, result R) Advice {
	r.seen = append(r.seen, result)
	if r.remaining > 0 {
		r.remaining--
		return Retry
	}
	return Return
}

// clamping replaces any result above max.
type clamping struct {
	ReturnOnLeave[struct{}]
	max int
}

func (c *clamping) Enter() struct{} { return struct{}{} }

func (c *clamping) OnResultMut(_ struct{}, result int) (Advice, int) {
	if result > c.max {
		return Return, c.max
	}
	return Return, result
}

// leaveRecorder remembers the contexts passed to LeaveScope.
type leaveRecorder struct {
	left   []int
	enters int
}

func (l *leaveRecorder) Enter() int {
	l.enters++
	return l.enters
}

func (l *leaveRecorder) OnResult(enter int, _ int) Advice { return Leave[int](l, enter) }

func (l *leaveRecorder) LeaveScope(enter int) Advice {
	l.left = append(l.left, enter)
	return Return
}

func TestIntercept_AlwaysReturnEvaluatesOnce(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("one evaluation, same value", prop.ForAll(
		func(v int) bool {
			a := &retrying[int]{}
			evaluations := 0
			got := Intercept(a, func() int {
				evaluations++
				return v
			})
			return evaluations == 1 && got == v && a.enters == 1
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestIntercept_RetryKTimes(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("k retries give k+1 evaluations and the last value", prop.ForAll(
		func(k int) bool {
			a := &retrying[int]{remaining: k}
			evaluations := 0
			got := Intercept(a, func() int {
				evaluations++
				return evaluations * 10
			})
			return evaluations == k+1 && got == (k+1)*10 && a.enters == k+1 && len(a.seen) == k+1
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func TestIntercept_EnterCalledEveryAttempt(t *testing.T) {
	a := &retrying[string]{remaining: 2}
	got := Intercept(a, func() string { return "ok" })

	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, a.enters)
	assert.Equal(t, []string{"ok", "ok", "ok"}, a.seen)
}

func TestInterceptMut_ReplacesResult(t *testing.T) {
	a := &clamping{max: 10}

	assert.Equal(t, 10, InterceptMut(a, func() int { return 42 }))
	assert.Equal(t, 7, InterceptMut(a, func() int { return 7 }))
}

func TestMutating_PassesResultThrough(t *testing.T) {
	inner := &retrying[int]{remaining: 1}
	evaluations := 0

	got := InterceptMut(Mutating[int, int](inner), func() int {
		evaluations++
		return evaluations
	})

	assert.Equal(t, 2, got)
	assert.Equal(t, 2, evaluations)
	assert.Equal(t, []int{1, 2}, inner.seen)
}

func TestMutating_ForwardsLeaveScope(t *testing.T) {
	inner := &leaveRecorder{}
	adapted := Mutating[int, int](inner)

	assert.Equal(t, Return, adapted.LeaveScope(5))
	assert.Equal(t, []int{5}, inner.left)
}

func TestInterceptErr(t *testing.T) {
	a := &retrying[Pair[int, error]]{remaining: 1}
	calls := 0
	boom := errors.New("boom")

	v, err := InterceptErr(a, func() (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 99, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 99, v)
	require.Len(t, a.seen, 2)
	assert.ErrorIs(t, a.seen[0].Err(), boom)
	assert.NoError(t, a.seen[1].Err())
}

func TestInterceptScoped_LeaveScopeOnPanic(t *testing.T) {
	a := &leaveRecorder{}

	assert.PanicsWithValue(t, "kaboom", func() {
		InterceptScoped(a, func() int { panic("kaboom") })
	})
	assert.Equal(t, []int{1}, a.left)
}

func TestInterceptScoped_NormalReturn(t *testing.T) {
	a := &leaveRecorder{}

	got := InterceptScoped(a, func() int { return 3 })

	assert.Equal(t, 3, got)
	// OnResult delegates to LeaveScope, so the single attempt is recorded once.
	assert.Equal(t, []int{1}, a.left)
}

func TestScopedOf(t *testing.T) {
	a := &leaveRecorder{}

	pair := ScopedOf(a, 7, func() (string, error) { return "ok", nil })
	assert.Equal(t, Of[string, error]("ok", nil), pair)
	assert.Empty(t, a.left)

	assert.Panics(t, func() {
		ScopedOf(a, 8, func() (string, error) { panic("boom") })
	})
	assert.Equal(t, []int{8}, a.left)
}

func TestIntercept_PanicNotIntercepted(t *testing.T) {
	a := &retrying[int]{}

	assert.Panics(t, func() {
		Intercept(a, func() int { panic("no") })
	})
	assert.Empty(t, a.seen)
}

func TestInterceptBounded(t *testing.T) {
	t.Run("within limit", func(t *testing.T) {
		a := &retrying[int]{remaining: 2}
		got, err := InterceptBounded(a, 3, func() int { return 1 })
		require.NoError(t, err)
		assert.Equal(t, 1, got)
		assert.Equal(t, 3, a.enters)
	})

	t.Run("exhausted", func(t *testing.T) {
		a := &retrying[int]{remaining: 100}
		evaluations := 0
		got, err := InterceptBounded(a, 4, func() int {
			evaluations++
			return evaluations
		})

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, exhausted.Attempts)
		assert.Equal(t, 4, exhausted.Last)
		assert.Equal(t, 4, got)
		assert.Equal(t, 4, evaluations)
	})

	t.Run("non-positive limit means one attempt", func(t *testing.T) {
		a := &retrying[int]{remaining: 1}
		_, err := InterceptBounded(a, 0, func() int { return 0 })
		assert.Error(t, err)
		assert.Equal(t, 1, a.enters)
	})

	t.Run("unwraps error results", func(t *testing.T) {
		boom := errors.New("boom")
		a := &retrying[Pair[int, error]]{remaining: 10}
		_, err := InterceptBounded(a, 2, func() Pair[int, error] { return Of(0, boom) })
		assert.ErrorIs(t, err, boom)
	})
}

func TestAdvice_String(t *testing.T) {
	assert.Equal(t, "return", Return.String())
	assert.Equal(t, "retry", Retry.String())
	assert.Equal(t, "unknown", Advice(7).String())
}

func TestPair_Err(t *testing.T) {
	assert.NoError(t, Of(1, error(nil)).Err())
	assert.NoError(t, Of(1, "not an error").Err())
	assert.EqualError(t, Of(1, errors.New("x")).Err(), "x")
}
