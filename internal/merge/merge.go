package merge

import (
	"reflect"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// Merge folds newSlots into oldSlots and returns a fresh map; neither input is modified.
//
//   - a non-empty new value overwrites the old one
//   - an omitted or empty new value leaves the old one in place
//   - object values merge key by key, scalars are replaced whole
func Merge(oldSlots, newSlots models.Slots) models.Slots {
	out := oldSlots.Clone()
	for k, v := range newSlots {
		if models.IsEmpty(v) {
			continue
		}
		out[k] = mergeValue(out[k], v)
	}
	return out
}

func mergeValue(old, next any) any {
	oldMap, oldIsMap := asMap(old)
	nextMap, nextIsMap := asMap(next)
	if !oldIsMap || !nextIsMap {
		return models.CloneValue(next)
	}

	out := models.Slots(oldMap).Clone()
	for k, v := range nextMap {
		if models.IsEmpty(v) {
			continue
		}
		out[k] = mergeValue(out[k], v)
	}
	return map[string]any(out)
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case models.Slots:
		return map[string]any(t), true
	default:
		return nil, false
	}
}

// Restrict drops every key the locked intent does not declare
func Restrict(slots models.Slots, allowed func(key string) bool) (models.Slots, []string) {
	out := make(models.Slots, len(slots))
	var dropped []string
	for k, v := range slots {
		if !allowed(k) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	return out, dropped
}

// Changed lists the keys whose value differs between before and after
func Changed(before, after models.Slots) []string {
	var keys []string
	for _, k := range after.Keys() {
		if !reflect.DeepEqual(before[k], after[k]) {
			keys = append(keys, k)
		}
	}
	return keys
}
