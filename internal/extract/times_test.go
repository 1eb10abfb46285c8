package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindTimeRange(t *testing.T) {
	tests := []struct {
		text string
		want TimeRange
		ok   bool
	}{
		{text: "9am to 6pm", want: TimeRange{From: "09:00", To: "18:00"}, ok: true},
		{text: "apply on duty today 9:20am to 1pm client meeting", want: TimeRange{From: "09:20", To: "13:00"}, ok: true},
		{text: "09:00 - 18:30", want: TimeRange{From: "09:00", To: "18:30"}, ok: true},
		{text: "2 to 5pm", want: TimeRange{From: "14:00", To: "17:00"}, ok: true},
		{text: "9 to 6pm", want: TimeRange{From: "09:00", To: "18:00"}, ok: true},
		{text: "10 am till 12 pm", want: TimeRange{From: "10:00", To: "12:00"}, ok: true},
		{text: "10 to 12pm", want: TimeRange{From: "10:00", To: "12:00"}, ok: true},
		{text: "11 to 12pm", want: TimeRange{From: "11:00", To: "12:00"}, ok: true},
		{text: "9 to 12pm", want: TimeRange{From: "09:00", To: "12:00"}, ok: true},
		{text: "1 to 3pm", want: TimeRange{From: "13:00", To: "15:00"}, ok: true},
		{text: "5:30 to 5pm", want: TimeRange{From: "05:30", To: "17:00"}, ok: true},
		{text: "9 baje se 6pm", ok: false},
		{text: "5 to 7 nov", ok: false},
		{text: "2025-11-04", ok: false},
		{text: "13pm to 2pm", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := FindTimeRange(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
