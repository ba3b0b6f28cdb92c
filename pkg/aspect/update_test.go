package aspect

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

type doubler struct{}

func (doubler) UpdateRef(v *int64) { *v *= 2 }

func TestFromRef_Doubler(t *testing.T) {
	u := FromRef[int64](doubler{})

	var v int64 = 42
	assert.Equal(t, int64(84), u.Update(v))
	assert.Equal(t, int64(168), u.Update(u.Update(v)))
	assert.Equal(t, int64(42), v, "the caller's value is not modified")

	// The reference form mutates in place.
	doubler{}.UpdateRef(&v)
	assert.Equal(t, int64(84), v)
}

func TestFromRef_MatchesRefOnCopy(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("adapter equals reference update on a copy", prop.ForAll(
		func(x int64) bool {
			cp := x
			doubler{}.UpdateRef(&cp)
			return FromRef[int64](doubler{}).Update(x) == cp
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestUpdate_ParameterShadowing(t *testing.T) {
	intercepted := func(foo int64) int64 { return foo + 2 }
	woven := func(foo int64) int64 {
		foo = FromRef[int64](doubler{}).Update(foo)
		return intercepted(foo)
	}

	assert.Equal(t, int64(86), woven(42))
}

func TestUpdateFuncs(t *testing.T) {
	inc := UpdateFunc[string](func(s string) string { return s + "!" })
	assert.Equal(t, "hi!", inc.Update("hi"))

	appendOne := FromRef[[]int](UpdateRefFunc[[]int](func(s *[]int) { *s = append(*s, 1) }))
	assert.Equal(t, []int{0, 1}, appendOne.Update([]int{0}))
}
