package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

func newTestFallback(residual bool) *Fallback {
	return NewFallback(schema.Default(), ResidualTextPolicy{Enabled: residual}, func() time.Time { return testNow })
}

func fillsBy(fills []Fill) map[string]string {
	out := map[string]string{}
	for _, f := range fills {
		out[f.Slot] = f.Extractor
	}
	return out
}

func TestFallback_DateAndLeaveTypeInOneTurn(t *testing.T) {
	fb := newTestFallback(true)

	out, fills := fb.Apply(Input{
		Intent:       models.IntentApplyLeave,
		Utterance:    "4 nov 2025 and sick leave",
		Prior:        models.Slots{},
		Extracted:    models.Slots{},
		Options:      map[string][]string{schema.OptionLeaveTypes: leaveTypes},
		Continuation: true,
	})

	assert.Equal(t, models.Slots{
		"leave_type": "Sick Leave",
		"from_date":  "2025-11-04",
		"to_date":    "2025-11-04",
	}, out)
	assert.Equal(t, map[string]string{
		"leave_type": ByOption,
		"from_date":  ByRange,
		"to_date":    ByRange,
	}, fillsBy(fills))
}

func TestFallback_TimeRangeOnContinuation(t *testing.T) {
	fb := newTestFallback(true)

	out, fills := fb.Apply(Input{
		Intent:       models.IntentApplyOnDuty,
		Utterance:    "9am to 6pm",
		Prior:        models.Slots{"date": "2025-11-03"},
		Extracted:    models.Slots{},
		Continuation: true,
	})

	assert.Equal(t, models.Slots{"from_time": "09:00", "to_time": "18:00"}, out)
	assert.Len(t, fills, 2)
}

func TestFallback_NeverOverwrites(t *testing.T) {
	fb := newTestFallback(true)

	out, fills := fb.Apply(Input{
		Intent:    models.IntentApplyOnDuty,
		Utterance: "today 9am to 6pm",
		Prior:     models.Slots{"date": "2025-10-30"},
		Extracted: models.Slots{"from_time": "10:00"},
	})

	assert.Equal(t, "10:00", out["from_time"], "oracle value is kept")
	assert.Equal(t, "18:00", out["to_time"])
	_, hasDate := out["date"]
	assert.False(t, hasDate, "prior date is not re-filled")
	assert.NotContains(t, fillsBy(fills), "date")
	assert.NotContains(t, fillsBy(fills), "from_time")
}

func TestFallback_SalaryDefaults(t *testing.T) {
	fb := newTestFallback(true)

	out, fills := fb.Apply(Input{
		Intent:    models.IntentGetSalarySlip,
		Utterance: "salary slip",
		Extracted: models.Slots{},
	})
	assert.Equal(t, models.Slots{"month": 11, "year": 2025}, out)
	assert.Equal(t, map[string]string{"month": ByDefault, "year": ByDefault}, fillsBy(fills))

	out, _ = fb.Apply(Input{
		Intent:    models.IntentGetSalarySlip,
		Utterance: "last month payslip",
		Extracted: models.Slots{},
	})
	assert.Equal(t, models.Slots{"month": 10, "year": 2025}, out)

	out, fills = fb.Apply(Input{
		Intent:    models.IntentGetSalarySlip,
		Utterance: "payslip for march 2024",
		Extracted: models.Slots{},
	})
	assert.Equal(t, models.Slots{"month": 3, "year": 2024}, out)
	assert.Equal(t, map[string]string{"month": ByMonth, "year": ByYear}, fillsBy(fills))
}

func TestFallback_AttendanceChoice(t *testing.T) {
	fb := newTestFallback(true)

	out, _ := fb.Apply(Input{
		Intent:    models.IntentMarkAttendance,
		Utterance: "punch out",
		Extracted: models.Slots{},
	})
	assert.Equal(t, models.Slots{"action": "check_out"}, out)
}

func TestResidualTextPolicy(t *testing.T) {
	onDuty := models.Slots{"date": "2025-11-03", "from_time": "09:00", "to_time": "18:00"}

	tests := []struct {
		name      string
		enabled   bool
		utterance string
		prior     models.Slots
		extracted models.Slots
		cont      bool
		wantFill  bool
	}{
		{name: "fills last free text slot", enabled: true, utterance: "wfh", prior: onDuty, cont: true, wantFill: true},
		{name: "disabled", enabled: false, utterance: "wfh", prior: onDuty, cont: true},
		{name: "first turn of a lock", enabled: true, utterance: "wfh", prior: onDuty, cont: false},
		{name: "more than one slot missing", enabled: true, utterance: "wfh", prior: models.Slots{"date": "2025-11-03"}, cont: true},
		{name: "oracle contributed", enabled: true, utterance: "wfh", prior: models.Slots{"date": "2025-11-03", "from_time": "09:00"}, extracted: models.Slots{"to_time": "18:00"}, cont: true},
		{name: "resent time range is not a reason", enabled: true, utterance: "9am to 6pm", prior: onDuty, cont: true},
		{name: "resent date is not a reason", enabled: true, utterance: "today", prior: onDuty, cont: true},
		{name: "echoed prior value is not a contribution", enabled: true, utterance: "wfh", prior: onDuty, extracted: models.Slots{"date": "2025-11-03"}, cont: true, wantFill: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newTestFallback(tt.enabled)
			extracted := tt.extracted
			if extracted == nil {
				extracted = models.Slots{}
			}
			out, fills := fb.Apply(Input{
				Intent:       models.IntentApplyOnDuty,
				Utterance:    tt.utterance,
				Prior:        tt.prior,
				Extracted:    extracted,
				Continuation: tt.cont,
			})

			if tt.wantFill {
				assert.Equal(t, "wfh", out["reason"])
				assert.Equal(t, ByResidual, fillsBy(fills)["reason"])
			} else {
				assert.NotContains(t, out, "reason")
			}
		})
	}
}

func TestResidualTextPolicy_OnlyFreeTextSlots(t *testing.T) {
	reg := schema.Default()
	policy := ResidualTextPolicy{Enabled: true}

	_, _, ok := policy.Apply(reg, ResidualInput{
		Intent:       models.IntentApplyOnDuty,
		Utterance:    "whenever",
		Slots:        models.Slots{"date": "2025-11-03", "from_time": "09:00", "reason": "wfh"},
		Continuation: true,
	})
	assert.False(t, ok, "to_time is not free text")

	slot, text, ok := policy.Apply(reg, ResidualInput{
		Intent:       models.IntentApplyLeave,
		Utterance:    "  family function ",
		Slots:        models.Slots{"leave_type": "Casual Leave", "from_date": "2025-11-04", "to_date": "2025-11-04"},
		Continuation: true,
	})
	require.True(t, ok)
	assert.Equal(t, "reason", slot)
	assert.Equal(t, "family function", text)
}

func TestSanitize(t *testing.T) {
	reg := schema.Default()
	opts := map[string][]string{schema.OptionLeaveTypes: leaveTypes}

	out, dropped := Sanitize(reg, models.IntentApplyLeave, models.Slots{
		"leave_type": "sick leav",
		"from_date":  "2025-11-04",
		"to_date":    "04/11/2025",
		"reason":     "null",
		"from_time":  "09:00",
	}, opts)

	assert.Equal(t, models.Slots{"leave_type": "Sick Leave", "from_date": "2025-11-04"}, out)
	assert.ElementsMatch(t, []string{"to_date", "reason", "from_time"}, dropped)
}
