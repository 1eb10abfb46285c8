package readiness

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(schema.Default())

	ev := e.Evaluate(models.IntentApplyOnDuty, models.Slots{"date": "2025-11-03"})
	assert.False(t, ev.ReadyToExecute)
	assert.Equal(t, []string{"from_time", "to_time", "reason"}, ev.MissingFields)
	require.NotNil(t, ev.NextQuestion)
	assert.Contains(t, *ev.NextQuestion, "9am to 6pm")

	ev = e.Evaluate(models.IntentApplyOnDuty, models.Slots{
		"date": "2025-11-03", "from_time": "09:00", "to_time": "18:00", "reason": "wfh",
	})
	assert.True(t, ev.ReadyToExecute)
	assert.Empty(t, ev.MissingFields)
	assert.Nil(t, ev.NextQuestion)

	ev = e.Evaluate(models.IntentCheckLeaveBalance, nil)
	assert.True(t, ev.ReadyToExecute, "intents without slots are ready at once")
}

func TestEvaluate_Unknown(t *testing.T) {
	e := NewEvaluator(schema.Default())

	ev := e.Evaluate(models.IntentUnknown, models.Slots{"reason": "x"})
	assert.False(t, ev.ReadyToExecute)
	assert.Empty(t, ev.MissingFields)
	require.NotNil(t, ev.NextQuestion)
	assert.Equal(t, UnknownQuestion, *ev.NextQuestion)
}

func TestEvaluateWithOptions(t *testing.T) {
	e := NewEvaluator(schema.Default())

	ev := e.EvaluateWithOptions(models.IntentApplyLeave, models.Slots{}, map[string][]string{
		schema.OptionLeaveTypes: {"Sick Leave", "Casual Leave"},
	})
	require.NotNil(t, ev.NextQuestion)
	assert.Contains(t, *ev.NextQuestion, "What type of leave?")
	assert.Contains(t, *ev.NextQuestion, "Available: Sick Leave, Casual Leave")

	ev = e.EvaluateWithOptions(models.IntentApplyLeave, models.Slots{"leave_type": "Sick Leave"}, map[string][]string{
		schema.OptionLeaveTypes: {"Sick Leave", "Casual Leave"},
	})
	require.NotNil(t, ev.NextQuestion)
	assert.NotContains(t, *ev.NextQuestion, "Available:", "options only accompany their own slot")
}

func TestEvaluateProperties(t *testing.T) {
	reg := schema.Default()
	e := NewEvaluator(reg)

	var intents []models.Intent
	slotNames := map[string]bool{}
	for _, s := range reg.Intents() {
		intents = append(intents, s.Intent)
		for _, slot := range s.Slots {
			slotNames[slot.Name] = true
		}
	}
	var names []string
	for n := range slotNames {
		names = append(names, n)
	}

	intentGen := gen.IntRange(0, len(intents)-1).Map(func(i int) models.Intent { return intents[i] })
	slotsGen := gen.SliceOf(gen.IntRange(0, len(names)-1)).Map(func(idx []int) models.Slots {
		s := models.Slots{}
		for _, i := range idx {
			s[names[i]] = "x"
		}
		return s
	})

	properties := gopter.NewProperties(nil)

	properties.Property("ready exactly when nothing is missing", prop.ForAll(
		func(intent models.Intent, slots models.Slots) bool {
			ev := e.Evaluate(intent, slots)
			return ev.ReadyToExecute == (len(ev.MissingFields) == 0) &&
				ev.ReadyToExecute == (ev.NextQuestion == nil)
		},
		intentGen, slotsGen,
	))

	properties.Property("missing fields follow declaration order", prop.ForAll(
		func(intent models.Intent, slots models.Slots) bool {
			ev := e.Evaluate(intent, slots)
			required := reg.RequiredSlots(intent)
			pos := 0
			for _, m := range ev.MissingFields {
				for pos < len(required) && required[pos] != m {
					pos++
				}
				if pos == len(required) {
					return false
				}
			}
			return true
		},
		intentGen, slotsGen,
	))

	properties.TestingRun(t)
}
