// Package ical renders donation pickup windows as RFC 5545 iCalendar
// documents.
package ical

import (
	"fmt"
	"strings"
	"time"
)

// Pickup is one scheduled collection of a donation.
type Pickup struct {
	UID         string
	Summary     string
	Description string
	Address     string
	Lat, Lng    *float64
	Start       time.Time
	Duration    time.Duration
	Cancelled   bool
	Organizer   string // contact; emails become mailto: URIs
	// Reminder is how long before Start an alarm fires. Zero means no alarm.
	Reminder time.Duration
	Created  time.Time
	Updated  time.Time
}

// Render produces a single-event calendar for p.
func Render(calName string, p Pickup) string {
	var b strings.Builder

	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//jredh-dev//foodshare//EN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	writeProp(&b, "X-WR-CALNAME", escapeText(calName))

	b.WriteString("BEGIN:VEVENT\r\n")
	writeProp(&b, "UID", p.UID)
	writeProp(&b, "DTSTAMP", formatDateTime(p.Updated))
	writeProp(&b, "DTSTART", formatDateTime(p.Start))
	if p.Duration > 0 {
		writeProp(&b, "DTEND", formatDateTime(p.Start.Add(p.Duration)))
	}
	writeProp(&b, "SUMMARY", escapeText(p.Summary))
	if p.Description != "" {
		writeProp(&b, "DESCRIPTION", escapeText(p.Description))
	}
	if p.Address != "" {
		writeProp(&b, "LOCATION", escapeText(p.Address))
	}
	if p.Lat != nil && p.Lng != nil {
		writeProp(&b, "GEO", fmt.Sprintf("%.6f;%.6f", *p.Lat, *p.Lng))
	}
	if p.Organizer != "" {
		writeProp(&b, "ORGANIZER", organizerURI(p.Organizer))
	}
	if p.Cancelled {
		writeProp(&b, "STATUS", "CANCELLED")
	} else {
		writeProp(&b, "STATUS", "CONFIRMED")
	}
	writeProp(&b, "CREATED", formatDateTime(p.Created))
	writeProp(&b, "LAST-MODIFIED", formatDateTime(p.Updated))

	if p.Reminder > 0 && !p.Cancelled {
		b.WriteString("BEGIN:VALARM\r\n")
		writeProp(&b, "TRIGGER", "-"+formatDuration(p.Reminder))
		writeProp(&b, "ACTION", "DISPLAY")
		writeProp(&b, "DESCRIPTION", "Pickup soon: "+escapeText(p.Summary))
		b.WriteString("END:VALARM\r\n")
	}

	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func organizerURI(contact string) string {
	if strings.Contains(contact, "@") {
		return "mailto:" + contact
	}
	return "tel:" + contact
}

// writeProp folds content lines longer than 75 octets (RFC 5545 3.1).
func writeProp(b *strings.Builder, name, value string) {
	line := name + ":" + value
	for len(line) > 75 {
		cut := 75
		// never split a UTF-8 sequence
		for cut > 0 && line[cut]&0xC0 == 0x80 {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func formatDateTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// formatDuration renders d as an iCal DURATION (PT1H, PT30M, P1D).
func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("P%dD", int(d/(24*time.Hour)))
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("PT%dH%dM", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("PT%dH", hours)
	default:
		return fmt.Sprintf("PT%dM", minutes)
	}
}

// escapeText escapes TEXT values per RFC 5545 3.3.11.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\r\n", `\n`, "\n", `\n`)
	return r.Replace(s)
}
