package merge

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		old, new models.Slots
		want     models.Slots
	}{
		{
			name: "new value added",
			old:  models.Slots{"date": "2025-11-03"},
			new:  models.Slots{"from_time": "09:00"},
			want: models.Slots{"date": "2025-11-03", "from_time": "09:00"},
		},
		{
			name: "non-empty value overwrites",
			old:  models.Slots{"reason": "wfh"},
			new:  models.Slots{"reason": "client meeting"},
			want: models.Slots{"reason": "client meeting"},
		},
		{
			name: "empty and null keep the old value",
			old:  models.Slots{"reason": "wfh", "date": "2025-11-03"},
			new:  models.Slots{"reason": "", "date": nil},
			want: models.Slots{"reason": "wfh", "date": "2025-11-03"},
		},
		{
			name: "objects merge by key",
			old:  models.Slots{"period": map[string]any{"from": "2025-11-05", "to": "2025-11-06"}},
			new:  models.Slots{"period": map[string]any{"to": "2025-11-07", "half_day": ""}},
			want: models.Slots{"period": map[string]any{"from": "2025-11-05", "to": "2025-11-07"}},
		},
		{
			name: "scalar replaces object",
			old:  models.Slots{"period": map[string]any{"from": "2025-11-05"}},
			new:  models.Slots{"period": "2025-11-05"},
			want: models.Slots{"period": "2025-11-05"},
		},
		{
			name: "nil inputs",
			want: models.Slots{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldCopy, newCopy := tt.old.Clone(), tt.new.Clone()

			got := Merge(tt.old, tt.new)
			assert.Equal(t, tt.want, got)

			if tt.old != nil {
				assert.Equal(t, oldCopy, tt.old, "old slots modified")
			}
			if tt.new != nil {
				assert.Equal(t, newCopy, tt.new, "new slots modified")
			}
		})
	}
}

func TestMerge_ResultIsIndependent(t *testing.T) {
	old := models.Slots{"period": map[string]any{"from": "2025-11-05"}}
	got := Merge(old, models.Slots{"reason": "trip"})

	got["period"].(map[string]any)["from"] = "changed"
	assert.Equal(t, "2025-11-05", old["period"].(map[string]any)["from"])
}

func TestRestrict(t *testing.T) {
	allowed := map[string]bool{"date": true, "reason": true}

	got, dropped := Restrict(models.Slots{"date": "2025-11-03", "reason": "wfh", "leave_type": "Sick Leave"}, func(k string) bool {
		return allowed[k]
	})

	assert.Equal(t, models.Slots{"date": "2025-11-03", "reason": "wfh"}, got)
	assert.Equal(t, []string{"leave_type"}, dropped)
}

func TestChanged(t *testing.T) {
	before := models.Slots{"date": "2025-11-03", "reason": "wfh"}
	after := models.Slots{"date": "2025-11-03", "reason": "field work", "from_time": "09:00"}

	assert.Equal(t, []string{"from_time", "reason"}, Changed(before, after))
	assert.Empty(t, Changed(after, after))
}

func toSlots(m map[string]string) models.Slots {
	out := make(models.Slots, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// values are sometimes empty so the keep-old-value branch is exercised
var slotValues = gen.OneGenOf(gen.Const(""), gen.AlphaString(), gen.NumString())

func TestMergeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("filled slots never disappear", prop.ForAll(
		func(o, n map[string]string) bool {
			old, next := toSlots(o), toSlots(n)
			got := Merge(old, next)
			for k := range old {
				if old.Has(k) && !got.Has(k) {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Identifier(), slotValues),
		gen.MapOf(gen.Identifier(), slotValues),
	))

	properties.Property("non-empty new values win", prop.ForAll(
		func(o, n map[string]string) bool {
			got := Merge(toSlots(o), toSlots(n))
			for k, v := range n {
				if v != "" && got[k] != v {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Identifier(), slotValues),
		gen.MapOf(gen.Identifier(), slotValues),
	))

	properties.Property("merging the same turn twice changes nothing", prop.ForAll(
		func(o, n map[string]string) bool {
			next := toSlots(n)
			once := Merge(toSlots(o), next)
			return reflect.DeepEqual(once, Merge(once, next))
		},
		gen.MapOf(gen.Identifier(), slotValues),
		gen.MapOf(gen.Identifier(), slotValues),
	))

	properties.Property("inputs are left untouched", prop.ForAll(
		func(o, n map[string]string) bool {
			old, next := toSlots(o), toSlots(n)
			Merge(old, next)
			return reflect.DeepEqual(old, toSlots(o)) && reflect.DeepEqual(next, toSlots(n))
		},
		gen.MapOf(gen.Identifier(), slotValues),
		gen.MapOf(gen.Identifier(), slotValues),
	))

	properties.TestingRun(t)
}
