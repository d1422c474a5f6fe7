package ical

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func samplePickup() Pickup {
	start := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	return Pickup{
		UID:       "L1@foodshare",
		Summary:   "Pickup: Bread",
		Address:   "123 Main St, Johannesburg",
		Start:     start,
		Duration:  time.Hour,
		Organizer: "donor@example.com",
		Reminder:  30 * time.Minute,
		Created:   start.Add(-48 * time.Hour),
		Updated:   start.Add(-24 * time.Hour),
	}
}

func TestRender(t *testing.T) {
	out := Render("Food pickup", samplePickup())

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VEVENT\r\nEND:VCALENDAR\r\n"))
	for _, want := range []string{
		"X-WR-CALNAME:Food pickup\r\n",
		"UID:L1@foodshare\r\n",
		"DTSTAMP:20260301T173000Z\r\n",
		"DTSTART:20260302T173000Z\r\n",
		"DTEND:20260302T183000Z\r\n",
		`LOCATION:123 Main St\, Johannesburg` + "\r\n",
		"ORGANIZER:mailto:donor@example.com\r\n",
		"STATUS:CONFIRMED\r\n",
		"CREATED:20260228T173000Z\r\n",
		"TRIGGER:-PT30M\r\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "GEO:")
	assert.NotContains(t, out, "\n\n")
}

func TestRender_Cancelled(t *testing.T) {
	p := samplePickup()
	p.Cancelled = true
	out := Render("Food pickup", p)

	assert.Contains(t, out, "STATUS:CANCELLED\r\n")
	assert.NotContains(t, out, "BEGIN:VALARM")
}

func TestRender_GeoAndPhoneOrganizer(t *testing.T) {
	p := samplePickup()
	lat, lng := -26.2041, 28.0473
	p.Lat, p.Lng = &lat, &lng
	p.Organizer = "+27825550100"
	p.Duration = 0
	out := Render("x", p)

	assert.Contains(t, out, "GEO:-26.204100;28.047300\r\n")
	assert.Contains(t, out, "ORGANIZER:tel:+27825550100\r\n")
	assert.NotContains(t, out, "DTEND")
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, `a\\b\;c\,d\ne\nf`, escapeText("a\\b;c,d\r\ne\nf"))
}

func TestWriteProp_Folds(t *testing.T) {
	var b strings.Builder
	writeProp(&b, "DESCRIPTION", strings.Repeat("é", 60))

	lines := strings.Split(strings.TrimSuffix(b.String(), "\r\n"), "\r\n")
	assert.Greater(t, len(lines), 1)
	for i, line := range lines {
		assert.LessOrEqual(t, len(line), 76, "line %d", i)
		if i > 0 {
			assert.True(t, strings.HasPrefix(line, " "))
		}
		assert.True(t, strings.ToValidUTF8(line, "?") == line, "line %d splits a rune", i)
	}

	unfolded := strings.ReplaceAll(b.String(), "\r\n ", "")
	assert.Equal(t, "DESCRIPTION:"+strings.Repeat("é", 60)+"\r\n", unfolded)
}

func TestFormatDuration(t *testing.T) {
	for d, want := range map[time.Duration]string{
		time.Hour:        "PT1H",
		90 * time.Minute: "PT1H30M",
		15 * time.Minute: "PT15M",
		48 * time.Hour:   "P2D",
	} {
		assert.Equal(t, want, formatDuration(d))
	}
}
