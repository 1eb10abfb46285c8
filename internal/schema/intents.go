package schema

import (
	"strings"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// Option list names shared with the option source
const (
	OptionLeaveTypes = "leave_types"
)

var (
	promptReason = Prompt{
		Hindi:   "कारण बताएं?",
		English: "Reason? (e.g., WFH, Client meeting, Field work)",
	}
	promptTimeFrom = Prompt{
		Hindi:   "किस समय से किस समय तक?",
		English: "What time range? (e.g., 9am to 6pm)",
	}
	promptTimeTo = Prompt{
		Hindi:   "किस समय तक?",
		English: "Until what time? (e.g., 6pm)",
	}
)

var lastMonthPhrases = []string{
	"last month", "previous month", "prev month", "last mnth", "previous mnth",
	"पिछले महीने", "पिछला महीना",
}

func salaryReference(now time.Time, utterance string) time.Time {
	lower := strings.ToLower(utterance)
	for _, p := range lastMonthPhrases {
		if strings.Contains(lower, p) {
			first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
			return first.AddDate(0, -1, 0)
		}
	}
	return now
}

func defaultSalaryMonth(now time.Time, utterance string) (any, bool) {
	return int(salaryReference(now, utterance).Month()), true
}

func defaultSalaryYear(now time.Time, utterance string) (any, bool) {
	return salaryReference(now, utterance).Year(), true
}

// DefaultIntents is the HR action catalogue. Order is keyword priority.
func DefaultIntents() []IntentSchema {
	return []IntentSchema{
		{
			Intent:      models.IntentApplyOnDuty,
			Description: "on-duty application (WFH, client site, field work)",
			Sticky:      true,
			Keywords:    []string{"on duty", "onduty", "on-duty", "wfh", "work from home", "field work", "client site"},
			Slots: []SlotSpec{
				{Name: "date", Kind: KindDate, Prompt: Prompt{Hindi: "किस तारीख के लिए on-duty चाहिए?", English: "For which date do you need on-duty?"}},
				{Name: "from_time", Kind: KindTimeStart, Prompt: promptTimeFrom},
				{Name: "to_time", Kind: KindTimeEnd, Prompt: promptTimeTo},
				{Name: "reason", Kind: KindText, Prompt: promptReason},
			},
		},
		{
			Intent:      models.IntentApplyRegularization,
			Description: "attendance regularization for a missed punch",
			Sticky:      true,
			Keywords: []string{
				"regularize", "regularise", "regularization", "regularisation",
				"forgot to punch", "forgot punch", "missed punch", "attendance correction",
			},
			Slots: []SlotSpec{
				{Name: "date", Kind: KindDate, Prompt: Prompt{Hindi: "किस तारीख की attendance regularize करनी है?", English: "Which date?"}},
				{Name: "from_time", Kind: KindTimeStart, Prompt: Prompt{Hindi: "आप किस समय से किस समय तक थे?", English: "What time range? (e.g., 9am to 6pm)"}},
				{Name: "to_time", Kind: KindTimeEnd, Prompt: promptTimeTo},
				{Name: "reason", Kind: KindText, Prompt: Prompt{Hindi: "कारण?", English: "Reason? (e.g., Forgot to punch, System issue)"}},
			},
		},
		{
			Intent:      models.IntentGetHolidays,
			Description: "upcoming holiday list",
			Keywords:    []string{"holiday", "holidays", "hoiday", "upcoming holiday", "chutti list", "festival"},
		},
		{
			Intent:      models.IntentCheckLeaveBalance,
			Description: "remaining leave balance",
			Keywords:    []string{"leave balance", "balance", "balence", "balnce", "remaining leave", "remaining leaves", "kitni chutti bachi"},
		},
		{
			Intent:      models.IntentGetSalarySlip,
			Description: "salary slip for a month",
			Keywords:    []string{"salary", "salary slip", "payslip", "pay slip", "वेतन", "वेतन पर्ची"},
			Slots: []SlotSpec{
				{Name: "month", Kind: KindMonth, Prompt: Prompt{Hindi: "किस महीने की?", English: "Which month?"}, Default: defaultSalaryMonth},
				{Name: "year", Kind: KindYear, Prompt: Prompt{Hindi: "किस साल की?", English: "Which year?"}, Default: defaultSalaryYear},
			},
		},
		{
			Intent:      models.IntentMarkAttendance,
			Description: "check-in or check-out",
			Keywords:    []string{"punch", "pnch", "punch in", "punch out", "check in", "check out", "checkin", "checkout", "mark attendance", "attendance"},
			Slots: []SlotSpec{
				{
					Name:   "action",
					Kind:   KindChoice,
					Prompt: Prompt{Hindi: "क्या करना है?", English: "What would you like to do? (check-in / check-out)"},
					Choices: []Choice{
						{Value: "check_in", Aliases: []string{"check in", "check-in", "checkin", "punch in", "pnch in", "clock in", "in"}},
						{Value: "check_out", Aliases: []string{"check out", "check-out", "checkout", "punch out", "pnch out", "clock out", "out"}},
					},
				},
			},
		},
		{
			Intent:      models.IntentApplyLeave,
			Description: "leave application",
			Sticky:      true,
			Keywords:    []string{"apply leave", "aply leave", "leave", "leaves", "leav", "leve", "chutti", "छुट्टी"},
			Slots: []SlotSpec{
				{Name: "leave_type", Kind: KindChoice, OptionList: OptionLeaveTypes, Prompt: Prompt{Hindi: "किस प्रकार की छुट्टी चाहिए?", English: "What type of leave?"}},
				{Name: "from_date", Kind: KindRangeStart, Prompt: Prompt{Hindi: "कब से?", English: "From which date?"}},
				{Name: "to_date", Kind: KindRangeEnd, Prompt: Prompt{Hindi: "कब तक?", English: "Till which date?"}},
				{Name: "reason", Kind: KindText, Prompt: Prompt{Hindi: "छुट्टी का कारण?", English: "Reason for leave?"}},
			},
		},
	}
}

// Default returns a registry holding DefaultIntents
func Default() *Registry {
	r, err := NewRegistry(DefaultIntents()...)
	if err != nil {
		panic(err)
	}
	return r
}
