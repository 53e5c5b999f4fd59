package ical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mxguardian/pst-extract/internal/domain"
)

func TestRenderEventBasicFields(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := &domain.AppointmentItem{
		Summary:  "Budget review",
		Location: "Room 4",
		Start:    start,
		End:      end,
	}
	out := RenderEvent(a, 0xdead)

	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:0xdead")
	assert.Contains(t, out, "SUMMARY:Budget review")
	assert.Contains(t, out, "DTSTART;VALUE=DATE-TIME:20240301T090000Z")
	assert.Contains(t, out, "DTEND;VALUE=DATE-TIME:20240301T100000Z")
	assert.Contains(t, out, "LOCATION:Room 4")
	assert.Contains(t, out, "CATEGORIES:NONE")
	assert.Contains(t, out, "END:VEVENT")
}

func TestRenderEventFreeBusyMapsToStatusAndTransp(t *testing.T) {
	free := &domain.AppointmentItem{FreeBusyState: FreeBusyFree}
	out := RenderEvent(free, 1)
	assert.Contains(t, out, "TRANSP:TRANSPARENT")
	assert.Contains(t, out, "STATUS:CONFIRMED")

	tentative := &domain.AppointmentItem{FreeBusyState: FreeBusyTentative}
	out = RenderEvent(tentative, 1)
	assert.Contains(t, out, "STATUS:TENTATIVE")
	assert.NotContains(t, out, "TRANSP")
}

func TestRenderEventAlarmOmittedWhenOutOfRange(t *testing.T) {
	a := &domain.AppointmentItem{HasAlarm: true, AlarmMinutes: 1440}
	out := RenderEvent(a, 1)
	assert.NotContains(t, out, "VALARM")

	a2 := &domain.AppointmentItem{HasAlarm: true, AlarmMinutes: 15}
	out2 := RenderEvent(a2, 1)
	assert.Contains(t, out2, "BEGIN:VALARM")
	assert.Contains(t, out2, "TRIGGER:-PT15M")
}

func TestRenderRRuleOmitsIntervalOfOne(t *testing.T) {
	r := &domain.Recurrence{Freq: "WEEKLY", Interval: 1, ByDay: []string{"MO", "WE"}}
	a := &domain.AppointmentItem{Recurrence: r}
	out := RenderEvent(a, 1)
	assert.Contains(t, out, "RRULE:FREQ=WEEKLY;BYDAY=MO,WE")
	assert.NotContains(t, out, "INTERVAL")
}

func TestRenderRRuleIncludesNonDefaultInterval(t *testing.T) {
	r := &domain.Recurrence{Freq: "DAILY", Interval: 3, HasCount: true, Count: 5}
	out := renderRRule(r)
	assert.Equal(t, "RRULE:FREQ=DAILY;COUNT=5;INTERVAL=3", out)
}

func TestWeekdayMaskToByDay(t *testing.T) {
	// Monday (bit 1) and Friday (bit 5).
	days := WeekdayMaskToByDay(1<<1 | 1<<5)
	assert.Equal(t, []string{"MO", "FR"}, days)
}

func TestRenderJournal(t *testing.T) {
	j := &domain.JournalItem{Summary: "Call with vendor", Description: "Discussed pricing"}
	out := RenderJournal(j)
	assert.Contains(t, out, "BEGIN:VJOURNAL")
	assert.Contains(t, out, "SUMMARY:Call with vendor")
	assert.Contains(t, out, "DESCRIPTION:Discussed pricing")
	assert.Contains(t, out, "END:VJOURNAL")
}
