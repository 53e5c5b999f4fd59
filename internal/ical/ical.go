// Package ical implements components D.3 (VEVENT) and D.4 (VJOURNAL):
// rendering a domain.AppointmentItem or domain.JournalItem as an RFC 5545
// calendar component. Grounded field-by-field on readpst.c's
// write_appointment (L2226-2336) and write_journal (L2192-2216). No pack
// example or ecosystem library implements RFC 5545 component assembly (see
// DESIGN.md), so this is a minimal stdlib-only renderer scoped to exactly
// the fields the original tool emits.
package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/mxguardian/pst-extract/internal/domain"
)

const dateTimeLayout = "20060102T150405Z"

// FreeBusy states, matching libpst's PST_FREEBUSY_* enum order.
const (
	FreeBusyTentative = iota
	FreeBusyFree
	FreeBusyBusy
	FreeBusyOutOfOffice
)

var weekdayTokens = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// FormatDateTime renders t as a UTC RFC 5545 DATE-TIME value, shared with
// internal/mailmsg's schedule-part renderer so both packages format VEVENT
// timestamps identically.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateTimeLayout)
}

// Escape applies RFC 5545 TEXT escaping, shared with internal/mailmsg's
// schedule-part renderer.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\n", `\n`)
	return r.Replace(s)
}

// RenderEvent builds a VEVENT block (without surrounding VCALENDAR) for a.
func RenderEvent(a *domain.AppointmentItem, blockID uint64) string {
	var b strings.Builder
	b.WriteString("BEGIN:VEVENT\n")
	fmt.Fprintf(&b, "UID:%#x\n", blockID)

	stamp := a.Created
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	fmt.Fprintf(&b, "DTSTAMP:%s\n", FormatDateTime(stamp))
	if !a.Created.IsZero() {
		fmt.Fprintf(&b, "CREATED:%s\n", FormatDateTime(a.Created))
	}
	if !a.LastMod.IsZero() {
		fmt.Fprintf(&b, "LAST-MOD:%s\n", FormatDateTime(a.LastMod))
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "SUMMARY:%s\n", Escape(a.Summary))
	}
	if a.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\n", Escape(a.Description))
	}
	if !a.Start.IsZero() {
		fmt.Fprintf(&b, "DTSTART;VALUE=DATE-TIME:%s\n", FormatDateTime(a.Start))
	}
	if !a.End.IsZero() {
		fmt.Fprintf(&b, "DTEND;VALUE=DATE-TIME:%s\n", FormatDateTime(a.End))
	}
	if a.Location != "" {
		fmt.Fprintf(&b, "LOCATION:%s\n", Escape(a.Location))
	}

	switch a.FreeBusyState {
	case FreeBusyTentative:
		b.WriteString("STATUS:TENTATIVE\n")
	case FreeBusyFree:
		b.WriteString("TRANSP:TRANSPARENT\n")
		b.WriteString("STATUS:CONFIRMED\n")
	case FreeBusyBusy, FreeBusyOutOfOffice:
		b.WriteString("STATUS:CONFIRMED\n")
	}

	if a.Recurrence != nil {
		b.WriteString(renderRRule(a.Recurrence))
		b.WriteString("\n")
	}

	if a.Category != "" {
		fmt.Fprintf(&b, "CATEGORIES:%s\n", Escape(a.Category))
	} else {
		b.WriteString("CATEGORIES:NONE\n")
	}

	if a.HasAlarm && a.AlarmMinutes >= 0 && a.AlarmMinutes < 1440 {
		b.WriteString("BEGIN:VALARM\n")
		fmt.Fprintf(&b, "TRIGGER:-PT%dM\n", a.AlarmMinutes)
		b.WriteString("ACTION:DISPLAY\n")
		b.WriteString("DESCRIPTION:Reminder\n")
		b.WriteString("END:VALARM\n")
	}

	b.WriteString("END:VEVENT\n")
	return b.String()
}

// renderRRule assembles an RRULE value from a decoded Recurrence, matching
// the field order and omission rules of pst_convert_recurrence's consumer
// in write_appointment.
func renderRRule(r *domain.Recurrence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RRULE:FREQ=%s", r.Freq)
	if r.HasCount && r.Count != 0 {
		fmt.Fprintf(&b, ";COUNT=%d", r.Count)
	}
	if r.Interval != 1 && r.Interval != 0 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	if r.HasByMonthDay && r.ByMonthDay != 0 {
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", r.ByMonthDay)
	}
	if r.HasByMonth && r.ByMonth != 0 {
		fmt.Fprintf(&b, ";BYMONTH=%d", r.ByMonth)
	}
	if r.HasBySetPos && r.BySetPos != 0 {
		fmt.Fprintf(&b, ";BYSETPOS=%d", r.BySetPos)
	}
	if len(r.ByDay) > 0 {
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(r.ByDay, ","))
	}
	return b.String()
}

// WeekdayMaskToByDay decodes pst_convert_recurrence's 7-bit Sunday-first
// weekday bitmask into the ordered BYDAY token list.
func WeekdayMaskToByDay(mask int) []string {
	var days []string
	for i := 0; i < 7; i++ {
		if mask&(1<<uint(i)) != 0 {
			days = append(days, weekdayTokens[i])
		}
	}
	return days
}

// RenderJournal builds a VJOURNAL block for j.
func RenderJournal(j *domain.JournalItem) string {
	var b strings.Builder
	b.WriteString("BEGIN:VJOURNAL\n")

	stamp := j.Created
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	fmt.Fprintf(&b, "DTSTAMP:%s\n", FormatDateTime(stamp))
	if !j.Created.IsZero() {
		fmt.Fprintf(&b, "CREATED:%s\n", FormatDateTime(j.Created))
	}
	if !j.LastMod.IsZero() {
		fmt.Fprintf(&b, "LAST-MOD:%s\n", FormatDateTime(j.LastMod))
	}
	if j.Summary != "" {
		fmt.Fprintf(&b, "SUMMARY:%s\n", Escape(j.Summary))
	}
	if j.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:%s\n", Escape(j.Description))
	}
	if j.HasStart {
		fmt.Fprintf(&b, "DTSTART;VALUE=DATE-TIME:%s\n", FormatDateTime(j.Start))
	}
	b.WriteString("END:VJOURNAL\n")
	return b.String()
}
